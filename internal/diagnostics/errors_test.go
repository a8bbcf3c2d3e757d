package diagnostics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"class and member", New(CodeNoSuchMember, "Point", "z"), "C005: no such member: Point.z"},
		{"class only", New(CodeNotDerived, "Point", ""), "C006: class is not derived: Point"},
		{"member only", New(CodeCyclicBinding, "", "@T"), "S002: cyclic type binding: @T"},
		{"types and line", New(CodeTypeMismatch, "Point", "x").WithTypes("int", "string").AtLine(7),
			"C002: type does not match the declared slot type: Point.x (want int, got string) at line 7"},
		{"cause", New(CodeUnresolved, "Box", "").WithCause(errors.New("boom")), "S001: unresolved specialization: Box: boom"},
		{"unknown code", &Error{Code: "X999"}, "X999: diagnostic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("namespace root: %w", New(CodeTemplateArgs, "Box<@T>", "@T").WithCause(cause))

	assert.True(t, errors.Is(err, ErrTemplateArgs))
	assert.False(t, errors.Is(err, ErrRedeclared))
	assert.True(t, errors.Is(err, cause))

	var d *Error
	require.True(t, errors.As(err, &d))
	assert.Equal(t, CodeTemplateArgs, d.Code)
	assert.Equal(t, "Box<@T>", d.Class)

	for code, sentinel := range sentinels {
		assert.ErrorIs(t, New(code, "", ""), sentinel, string(code))
	}
}

func TestMissingMethodString(t *testing.T) {
	m := MissingMethod{Interface: "Shape", Method: "area", Want: "routine<Shape=>double>"}
	assert.Equal(t, "Shape.area: missing (want routine<Shape=>double>)", m.String())
	m.Got = []string{"routine<Blob=>string>", "routine<Blob,int=>string>"}
	assert.Equal(t, "Shape.area: incompatible (want routine<Shape=>double>, have routine<Blob=>string>, routine<Blob,int=>string>)", m.String())
}
