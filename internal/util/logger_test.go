package util

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, false)
	t.Cleanup(func() { InitLogger(false) })

	l := ComponentLogger("server")
	l.Infof("listening on :%d", 29889)
	l.Warnf("slow")
	l.Debugf("hidden at info level")

	out := buf.String()
	assert.Contains(t, out, "component=server")
	assert.Contains(t, out, `msg="listening on :29889"`)
	assert.Contains(t, out, "level=WARN")
	assert.NotContains(t, out, "hidden")
}

func TestSetupGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, false)
	SetupGlobalLogger()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
		InitLogger(false)
	})

	log.Println("http: TLS handshake error")
	assert.Contains(t, buf.String(), `msg="http: TLS handshake error"`)
}
