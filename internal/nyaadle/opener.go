package nyaadle

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener hands a URI to an external program, e.g. a torrent client
// registered for magnet links.
type Opener interface {
	Open(target string) error
}

// SystemOpener opens URIs with the desktop's default handler.
type SystemOpener struct{}

// Open starts the platform URI handler for target and waits for it to exit.
func (SystemOpener) Open(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", target)
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return nil
}
