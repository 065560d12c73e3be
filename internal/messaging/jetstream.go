package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const changesStream = "CHANGES"

// ChangeSubjects is the subject space carrying store change notes.
const ChangeSubjects = "organizer.change.>"

// EnsureStreams creates (or validates) the change-note stream. Notes are
// small and only trigger re-reads, so a short limits-policy stream is
// plenty.
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(changesStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      changesStream,
				Subjects:  []string{ChangeSubjects},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}
	return nil
}
