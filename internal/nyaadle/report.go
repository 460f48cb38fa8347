package nyaadle

import "github.com/sirupsen/logrus"

// Summary aggregates the outcome of one run.
type Summary struct {
	Downloaded int // downloaded or handed to the opener
	Found      int // matches reported in check mode
	Repeats    int // suppressed by the tracker
	Archived   int // already present in the archive
	Failed     int // transfer or opener failures
}

// Add records one executor outcome.
func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeDownloaded, OutcomeOpened:
		s.Downloaded++
	case OutcomeArchived:
		s.Archived++
	default:
		s.Failed++
	}
}

// Report logs the run total.
func (s *Summary) Report(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"found":    s.Found,
		"repeats":  s.Repeats,
		"archived": s.Archived,
		"failed":   s.Failed,
	}).Debug("Run counters")
	if s.Downloaded == 0 {
		log.Info("No items downloaded. Nyaadle closed.")
		return
	}
	log.Infof("%d items downloaded. Nyaadle closed.", s.Downloaded)
}
