package types

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestNewDeploymentIDFromIPFSHash(t *testing.T) {
	g := NewWithT(t)

	id, err := NewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(id.IPFSHash()).To(Equal("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb"))
}

func TestNewDeploymentIDFromHex(t *testing.T) {
	g := NewWithT(t)

	hex := "0x" + strings.Repeat("ab", 32)
	id, err := NewDeploymentID(hex)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(id.Hex()).To(Equal(hex))
}

func TestNewDeploymentIDRejectsShortHex(t *testing.T) {
	g := NewWithT(t)

	_, err := NewDeploymentID("0xabcdef")
	g.Expect(err).To(HaveOccurred())
}

func TestDeploymentIDRoundTripsThroughBothEncodings(t *testing.T) {
	g := NewWithT(t)

	ipfs, err := NewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	g.Expect(err).NotTo(HaveOccurred())

	fromHex, err := NewDeploymentID(ipfs.Hex())
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(fromHex.Equal(ipfs)).To(BeTrue())
	g.Expect(fromHex.IPFSHash()).To(Equal(ipfs.IPFSHash()))
}

func TestNewDeploymentIDFromBytes32(t *testing.T) {
	g := NewWithT(t)

	ipfs, err := NewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	g.Expect(err).NotTo(HaveOccurred())

	fromBytes := NewDeploymentIDFromBytes32(ipfs.Bytes32())
	g.Expect(fromBytes.Equal(ipfs)).To(BeTrue())
}

func TestDeploymentIDEqualIgnoresEncoding(t *testing.T) {
	g := NewWithT(t)

	a := MustNewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	b, err := NewDeploymentID(a.Hex())
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(a.Equal(b)).To(BeTrue())
	g.Expect(a.String()).To(Equal(a.IPFSHash()))
}

func TestMustNewDeploymentIDPanicsOnInvalidInput(t *testing.T) {
	g := NewWithT(t)

	g.Expect(func() { MustNewDeploymentID("not-a-deployment-id") }).To(Panic())
}
