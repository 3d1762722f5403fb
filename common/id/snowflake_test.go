package id_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/livefeed/common/id"
)

var _ = Describe("New", func() {
	It("hands out increasing unique ids", func() {
		seen := make(map[int64]bool)
		last := int64(0)
		for range 1000 {
			next := id.New()
			Expect(seen).NotTo(HaveKey(next))
			Expect(next).To(BeNumerically(">", last))
			seen[next] = true
			last = next
		}
	})
})
