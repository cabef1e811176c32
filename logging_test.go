package rampselect

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSelectorLogger_zerologBackendReceivesEvents(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	log := newSelectorLogger(izerolog.L.New(izerolog.L.WithZerolog(zl), logiface.LevelDebug).Logger())

	log.memberInserted(Key{Authority: "foo.com"}, 1000)
	log.graduated(Key{Authority: "foo.com"}, 1000)

	out := buf.String()
	assert.True(t, strings.Contains(out, "foo.com"))
	assert.True(t, strings.Contains(out, "ramp-up"))
}

func TestSelectorLogger_defaultIsSilent(t *testing.T) {
	log := newSelectorLogger(nil)
	// must not panic with no backend configured.
	log.windowCreated(0, 0)
	log.upstreamFailure(ErrSelectorClosed)
}
