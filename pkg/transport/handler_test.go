package transport_test

import (
	"testing"
	"time"
)

// recorder is a Handler that forwards callbacks onto channels.
type recorder struct {
	opens    chan struct{}
	messages chan []byte
	closes   chan error
}

func newRecorder() *recorder {
	return &recorder{
		opens:    make(chan struct{}, 8),
		messages: make(chan []byte, 64),
		closes:   make(chan error, 8),
	}
}

func (r *recorder) OnOpen()                { r.opens <- struct{}{} }
func (r *recorder) OnMessage(frame []byte) { r.messages <- frame }
func (r *recorder) OnClose(err error)      { r.closes <- err }

const waitFor = 2 * time.Second

func (r *recorder) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-r.opens:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for OnOpen")
	}
}

func (r *recorder) waitMessage(t *testing.T) []byte {
	t.Helper()
	select {
	case m := <-r.messages:
		return m
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for OnMessage")
		return nil
	}
}

func (r *recorder) waitClose(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.closes:
		return err
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for OnClose")
		return nil
	}
}

func (r *recorder) expectNoClose(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case err := <-r.closes:
		t.Fatalf("unexpected OnClose(%v)", err)
	case <-time.After(d):
	}
}
