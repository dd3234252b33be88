package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.WithLabelValues(labels...).(prometheus.Metric).Write(m))
	return m.GetCounter().GetValue()
}

func TestRecorderTracksMessagesAndBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.MessageSent('Q')
	r.MessageSent('Q')
	r.MessageReceived('Z')
	r.BytesSent(10)
	r.BytesReceived(3)
	r.CopyRows("in", 5)

	require.Equal(t, float64(2), counterValue(t, r.messagesSent, "Q"))
	require.Equal(t, float64(1), counterValue(t, r.messagesReceived, "Z"))
	require.Equal(t, float64(5), counterValue(t, r.copyRows, "in"))

	m := &dto.Metric{}
	require.NoError(t, r.bytesSent.Write(m))
	require.Equal(t, float64(10), m.GetCounter().GetValue())
	m = &dto.Metric{}
	require.NoError(t, r.bytesReceived.Write(m))
	require.Equal(t, float64(3), m.GetCounter().GetValue())
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.MessageSent('Q')
		r.MessageReceived('Z')
		r.BytesSent(1)
		r.BytesReceived(1)
		r.CopyRows("out", 1)
	})
}

func TestNewRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	require.Error(t, err)
}
