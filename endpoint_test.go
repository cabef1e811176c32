package rampselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint_Key_ignoresWeight(t *testing.T) {
	a := Endpoint{Authority: "foo.com:80", TargetWeight: 100}
	b := Endpoint{Authority: "foo.com:80", TargetWeight: 900}
	assert.Equal(t, a.Key(), b.Key())
}

func TestEndpoint_Key_distinguishesAttributes(t *testing.T) {
	a := Endpoint{Authority: "foo.com:80", Attributes: map[string]string{"zone": "a"}}
	b := Endpoint{Authority: "foo.com:80", Attributes: map[string]string{"zone": "b"}}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestEndpoint_Key_attributeOrderIndependent(t *testing.T) {
	a := Endpoint{Authority: "foo.com:80", Attributes: map[string]string{"zone": "a", "shard": "1"}}
	b := Endpoint{Authority: "foo.com:80", Attributes: map[string]string{"shard": "1", "zone": "a"}}
	assert.Equal(t, a.Key(), b.Key())
}

func TestEndpoint_Key_noAttributesFastPath(t *testing.T) {
	a := Endpoint{Authority: "foo.com:80"}
	assert.Equal(t, Key{Authority: "foo.com:80"}, a.Key())
}

func TestEndpoint_String(t *testing.T) {
	assert.Equal(t, "foo.com:80", Endpoint{Authority: "foo.com:80"}.String())
	assert.Contains(t, Endpoint{Authority: "foo.com:80", Attributes: map[string]string{"zone": "a"}}.String(), "foo.com:80")
}
