package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, New(in).GetLevel(), in)
	}
}

func TestService_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("info", &buf)

	Service(log, "images").WithField("image_id", "abc").Info("image created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "image created", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "images", line["service"])
	assert.Equal(t, "abc", line["image_id"])
	assert.Contains(t, line, "timestamp")
}
