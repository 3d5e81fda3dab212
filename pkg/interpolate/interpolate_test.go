package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySubstitutesVariables(t *testing.T) {
	vars := map[string]string{"student_name": "Jane", "program": "CS"}

	out, unresolved := Apply("Dear {{student_name}}, welcome to {{ program }}.", vars)
	require.Empty(t, unresolved)
	assert.Equal(t, "Dear Jane, welcome to CS.", out)
}

func TestApplyCaseInsensitiveNames(t *testing.T) {
	out, unresolved := Apply("{{Student_Name}} / {{STUDENT_NAME}}", map[string]string{"student_name": "Jane"})
	require.Empty(t, unresolved)
	assert.Equal(t, "Jane / Jane", out)
}

func TestApplyUnresolvedBecomesEmptyWithWarning(t *testing.T) {
	out, unresolved := Apply("Hello {{missing}} and {{student_name}}", map[string]string{"student_name": "Jane"})
	assert.Equal(t, "Hello  and Jane", out)
	assert.Equal(t, []string{"missing"}, unresolved)
}

func TestApplyDoesNotEscapeValues(t *testing.T) {
	out, _ := Apply("{{body}}", map[string]string{"body": "<b>bold & raw</b>"})
	assert.Equal(t, "<b>bold & raw</b>", out)
}

func TestApplyIdempotent(t *testing.T) {
	vars := map[string]string{"student_name": "Jane", "institution": "MIT"}
	first, unresolved := Apply("Dear {{student_name}} of {{institution}}, {{gone}}.", vars)
	assert.Equal(t, []string{"gone"}, unresolved)

	second, unresolved := Apply(first, vars)
	require.Empty(t, unresolved)
	assert.Equal(t, first, second)
}

func TestApplyReportsUnresolvedSortedAndDeduplicated(t *testing.T) {
	_, unresolved := Apply("{{zz}} {{aa}} {{ZZ}}", map[string]string{})
	assert.Equal(t, []string{"aa", "zz"}, unresolved)
}

func TestTokens(t *testing.T) {
	names := Tokens("{{One}} {{two}} {{ one }} no token {single}")
	assert.Equal(t, []string{"one", "two"}, names)
}
