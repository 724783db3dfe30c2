package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// RenewJob é o payload publicado no tópico NATS jobs.renew.
type RenewJob struct {
	ID          string    `json:"id"`
	Site        string    `json:"site"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRenewJob(site string, at time.Time) RenewJob {
	return RenewJob{ID: uuid.NewString(), Site: site, RequestedAt: at.UTC()}
}

func (j RenewJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// Decode rejeita jobs sem site: não há o que renovar.
func Decode(data []byte) (RenewJob, error) {
	var job RenewJob
	if err := json.Unmarshal(data, &job); err != nil {
		return RenewJob{}, fmt.Errorf("erro unmarshal job: %w", err)
	}
	if job.Site == "" {
		return RenewJob{}, errors.New("job sem site")
	}
	return job, nil
}

// EnsureStream garante que o stream exista com o subject informado.
func EnsureStream(js nats.JetStreamContext, stream, subject string) error {
	if _, err := js.StreamInfo(stream); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("erro criando stream %s: %w", stream, err)
	}
	return nil
}
