package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type terminationRecorder struct {
	expired []uint64
	closed  []uint64
}

func (r *terminationRecorder) OnExpire(session *Session) {
	r.expired = append(r.expired, session.ID())
}

func (r *terminationRecorder) OnClose(session *Session) {
	r.closed = append(r.closed, session.ID())
}

func TestSessionsOpenIsIdempotent(t *testing.T) {
	sessions := MakeSessions()

	first := sessions.Open(7)
	second := sessions.Open(7)
	require.Same(t, first, second)
	require.True(t, first.State().Active())
}

func TestSessionsNotifyTermination(t *testing.T) {
	sessions := MakeSessions()
	recorder := &terminationRecorder{}
	sessions.AddListener(recorder)

	sessions.Open(7)
	sessions.Open(8)

	sessions.Expire(7)
	sessions.Close(8)

	require.Equal(t, []uint64{7}, recorder.expired)
	require.Equal(t, []uint64{8}, recorder.closed)
	require.Equal(t, SessionExpired, sessions.Session(7).State())
	require.Equal(t, SessionClosed, sessions.Session(8).State())

	// terminating twice is a no-op
	sessions.Close(7)
	require.Equal(t, []uint64{8}, recorder.closed)
}

func TestSessionPublishOrder(t *testing.T) {
	sessions := MakeSessions()
	session := sessions.Open(7)

	var topics []string
	session.SetListener(func(topic string, event interface{}) {
		topics = append(topics, topic)
	})

	session.Publish("A", nil)
	session.Publish("B", nil)
	session.Publish("C", nil)
	require.Equal(t, []string{"A", "B", "C"}, topics)
}
