package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var knownNames = []string{"Lipidil", "Glifage XR", "Losartana"}

func TestResolveName(t *testing.T) {
	assert.Equal(t, "Lipidil", ResolveName("lipidi", knownNames))
	assert.Equal(t, "Lipidil", ResolveName("  LIPIDIL ", knownNames))
	assert.Equal(t, "Glifage XR", ResolveName("glifage", knownNames))
	assert.Equal(t, "Losartana", ResolveName("lozartana", knownNames))
	assert.Equal(t, "Xyzxyz", ResolveName("xyzxyz", knownNames))
	assert.Equal(t, "Vitamina D", ResolveName("vitamina d", knownNames))
}

func TestResolveNameWithoutKnownNames(t *testing.T) {
	assert.Equal(t, "Lipidil", ResolveName("lipidil", nil))
}

func TestMentionedName(t *testing.T) {
	name, ok := mentionedName("errei, não tomei o glifage xr hoje", knownNames)
	assert.True(t, ok)
	assert.Equal(t, "Glifage XR", name)

	_, ok = mentionedName("tomei o lipidilzinho", knownNames)
	assert.False(t, ok)
}

func TestFoldStripsAccents(t *testing.T) {
	assert.Equal(t, "remedio", fold(" Remédio "))
}
