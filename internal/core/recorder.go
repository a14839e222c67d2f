package core

import (
	"go.uber.org/zap"

	"AstroGate/internal/model"
	"AstroGate/internal/store"
)

// Recorder writes gateway events to the history store.
type Recorder struct {
	store *store.Store
	log   *zap.Logger
}

// NewRecorder returns an Observer backed by st.
func NewRecorder(st *store.Store, log *zap.Logger) *Recorder {
	return &Recorder{store: st, log: log.Named("store")}
}

// ScriptSent implements Observer.
func (r *Recorder) ScriptSent(name string, cmd model.ScriptCommand) {
	rec, err := r.store.RecordScript(name, cmd)
	if err != nil {
		r.log.Error("record script", zap.String("script", name), zap.Error(err))
		return
	}
	r.log.Debug("script recorded", zap.String("id", rec.ID), zap.String("digest", rec.Digest))
}

// SampleDecoded implements Observer.
func (r *Recorder) SampleDecoded(source string, s model.SenseHatSample) {
	if _, err := r.store.RecordSample(source, s); err != nil {
		r.log.Error("record sample", zap.String("source", source), zap.Error(err))
	}
}

// StatusChanged implements Observer. Status is not persisted.
func (r *Recorder) StatusChanged(model.Status) {}
