package config

import (
	"math/big"
	"testing"

	. "github.com/onsi/gomega"
)

func TestParseGRTConvertsDecimalToWeiUnits(t *testing.T) {
	g := NewWithT(t)

	v, err := ParseGRT("0.01")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(big.NewInt(10000000000000000)))
}

func TestParseGRTHandlesWholeNumbers(t *testing.T) {
	g := NewWithT(t)

	v, err := ParseGRT("1")
	g.Expect(err).NotTo(HaveOccurred())

	expected := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	g.Expect(v).To(Equal(expected))
}

func TestParseGRTRejectsGarbageInput(t *testing.T) {
	g := NewWithT(t)

	_, err := ParseGRT("not-a-number")
	g.Expect(err).To(HaveOccurred())
}
