package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/syncpad/syncpad/internal/document"
	"github.com/syncpad/syncpad/internal/document/repository"
	"github.com/syncpad/syncpad/pkg/metrics"
)

// Mirror is the durable-storage boundary. The in-memory store stays
// authoritative; mirror writes happen strictly after the in-memory mutation
// (and any broadcast) and their failures are logged, never propagated.
type Mirror interface {
	Save(ctx context.Context, d *document.Document) error
	Delete(ctx context.Context, id string) error
}

const (
	mirrorQueueSize    = 256
	mirrorWriteTimeout = 5 * time.Second
)

type mirrorJob struct {
	doc *document.Document // nil means delete
	id  string
}

// Service wraps the authoritative MemoryStore with optional asynchronous
// write-through to a Mirror. Both the realtime hub and the REST surface go
// through it; each operation is independently atomic (store-level locking).
type Service struct {
	store  *repository.MemoryStore
	mirror Mirror
	log    *zap.Logger
	jobs   chan mirrorJob
	done   chan struct{}
}

// New builds a Service. mirror may be nil; the service is fully functional
// without durable storage.
func New(store *repository.MemoryStore, mirror Mirror, log *zap.Logger) *Service {
	s := &Service{
		store:  store,
		mirror: mirror,
		log:    log,
	}
	if mirror != nil {
		s.jobs = make(chan mirrorJob, mirrorQueueSize)
		s.done = make(chan struct{})
		go s.mirrorWorker()
	}
	return s
}

// Close drains the mirror worker. Safe to call when no mirror is configured.
func (s *Service) Close() {
	if s.jobs == nil {
		return
	}
	close(s.jobs)
	<-s.done
}

func (s *Service) Create(title, content string) *document.Document {
	d := s.store.Create(title, content)
	s.enqueue(mirrorJob{doc: d})
	return d
}

func (s *Service) Get(id string) (*document.Document, error) {
	return s.store.Get(id)
}

func (s *Service) List() []*document.Document {
	return s.store.List()
}

func (s *Service) UpdateContent(id, content string) (*document.Document, error) {
	d, err := s.store.UpdateContent(id, content)
	if err != nil {
		return nil, err
	}
	s.enqueue(mirrorJob{doc: d})
	return d, nil
}

func (s *Service) UpdateTitle(id, title string) (*document.Document, error) {
	d, err := s.store.UpdateTitle(id, title)
	if err != nil {
		return nil, err
	}
	s.enqueue(mirrorJob{doc: d})
	return d, nil
}

func (s *Service) Replace(id string, title, content *string) (*document.Document, error) {
	d, err := s.store.Replace(id, title, content)
	if err != nil {
		return nil, err
	}
	s.enqueue(mirrorJob{doc: d})
	return d, nil
}

func (s *Service) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.enqueue(mirrorJob{id: id})
	return nil
}

// SetCollaborators records room presence on the document. Presence is
// ephemeral and is not mirrored.
func (s *Service) SetCollaborators(id string, ids []string) error {
	return s.store.SetCollaborators(id, ids)
}

// enqueue hands a write to the mirror worker without blocking the caller.
// A full queue drops the job: the mirror is eventual, not transactional.
func (s *Service) enqueue(job mirrorJob) {
	if s.jobs == nil {
		return
	}
	select {
	case s.jobs <- job:
	default:
		metrics.MirrorFailures.Inc()
		s.log.Warn("mirror queue full, dropping write", zap.String("docId", jobID(job)))
	}
}

func (s *Service) mirrorWorker() {
	defer close(s.done)
	for job := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
		var err error
		if job.doc != nil {
			err = s.mirror.Save(ctx, job.doc)
		} else {
			err = s.mirror.Delete(ctx, job.id)
		}
		cancel()
		if err != nil {
			metrics.MirrorFailures.Inc()
			s.log.Error("mirror write failed", zap.String("docId", jobID(job)), zap.Error(err))
		}
	}
}

func jobID(job mirrorJob) string {
	if job.doc != nil {
		return job.doc.ID
	}
	return job.id
}
