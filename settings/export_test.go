package settings_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settings-portal/settings"
)

func TestExportImport(t *testing.T) {
	src, _ := newTestStore(t)
	require.NoError(t, src.Set(settings.MQTTBrokerHost, "broker.lan"))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))
	assert.Contains(t, buf.String(), "label: MQTT_BROKER_HOST")

	dst, _ := newTestStore(t)
	n, err := dst.Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, len(settings.Labels), n)
	assert.Equal(t, "broker.lan", dst.Get(settings.MQTTBrokerHost))
}

func TestImportSkipsUnknownAndEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Get(settings.MQTTBrokerUser)

	in := `
- label: NOT_A_LABEL
  value: x
- label: MQTT_BROKER_USER
  value: ""
- label: MQTT_BROKER_PORT
  value: "1999"
`
	n, err := s.Import(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "1999", s.Get(settings.MQTTBrokerPort))
	assert.Equal(t, before, s.Get(settings.MQTTBrokerUser))
}

func TestImportEmptyInput(t *testing.T) {
	s, _ := newTestStore(t)
	n, err := s.Import(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportBadYAML(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Import(strings.NewReader("{not: [valid"))
	assert.Error(t, err)
}
