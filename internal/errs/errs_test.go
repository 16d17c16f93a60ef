package errs

import (
	"fmt"
	"testing"

	. "github.com/onsi/gomega"
)

func TestIsMatchesDirectKind(t *testing.T) {
	g := NewWithT(t)

	err := New(KindConfig, CodeConfigInvalid, "op", nil)
	g.Expect(Is(err, KindConfig)).To(BeTrue())
	g.Expect(Is(err, KindContractRead)).To(BeFalse())
}

func TestIsUnwrapsThroughStandardWrapping(t *testing.T) {
	g := NewWithT(t)

	base := New(KindUpstreamUnavailable, CodeUpstreamGraphNode, "op", nil)
	wrapped := fmt.Errorf("context: %w", base)

	g.Expect(Is(wrapped, KindUpstreamUnavailable)).To(BeTrue())
}

func TestIsFalseForPlainErrors(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Is(fmt.Errorf("plain"), KindConfig)).To(BeFalse())
	g.Expect(Is(nil, KindConfig)).To(BeFalse())
}

func TestErrorStringIncludesKindAndCode(t *testing.T) {
	g := NewWithT(t)

	err := New(KindConfig, CodeConfigInvalid, "config.FromViper", fmt.Errorf("boom"))
	g.Expect(err.Error()).To(ContainSubstring("config.FromViper"))
	g.Expect(err.Error()).To(ContainSubstring(string(KindConfig)))
	g.Expect(err.Error()).To(ContainSubstring(CodeConfigInvalid))
	g.Expect(err.Error()).To(ContainSubstring("boom"))
}

func TestErrorStringOmitsColonWhenNoUnderlyingError(t *testing.T) {
	g := NewWithT(t)

	err := New(KindFatal, CodeFatalStartup, "cmd.buildUnit", nil)
	g.Expect(err.Error()).NotTo(ContainSubstring(": "))
}
