package catalog

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager delegate and nextCatalog behavior", func() {
	var m *Manager

	It("resolves a delegated name through the delegate catalog, while the root's own uri entries match before delegation", func() {
		root := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <delegateURI uriStartString="http://example.com/ns/" catalog="file:///delegate.xml"/>
  <uri name="http://example.com/ns/root-only.xsd" uri="root-only.xsd"/>
</catalog>`
		delegate := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <uri name="http://example.com/ns/delegate-only.xsd" uri="delegate-only.xsd"/>
</catalog>`
		m = newTestManager(map[string]string{
			"file:///root.xml":     root,
			"file:///delegate.xml": delegate,
		}, []string{"file:///root.xml"})

		res, err := m.LookupURI("http://example.com/ns/delegate-only.xsd", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Found).To(BeTrue())
		Expect(res.ResolvedURI).To(Equal("file:///delegate-only.xsd"))

		res, err = m.LookupURI("http://example.com/ns/root-only.xsd", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Found).To(BeTrue())
		Expect(res.ResolvedURI).To(Equal("file:///root-only.xsd"))
	})

	It("follows a nextCatalog chain and terminates on a cycle back to a visited catalog", func() {
		a := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <nextCatalog catalog="file:///b.xml"/>
</catalog>`
		b := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <nextCatalog catalog="file:///a.xml"/>
  <system systemId="http://example.com/c.dtd" uri="c.dtd"/>
</catalog>`
		m = newTestManager(map[string]string{
			"file:///a.xml": a,
			"file:///b.xml": b,
		}, []string{"file:///a.xml"})

		res, err := m.LookupEntity("", "http://example.com/c.dtd", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Found).To(BeTrue())
		Expect(res.ResolvedURI).To(Equal("file:///c.dtd"))
	})

	It("serves a fresh generation after Reload without mixing entries from the old and new catalog content", func() {
		calls := 0
		contents := []string{
			`<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system systemId="http://example.com/v.dtd" uri="v1.dtd"/>
</catalog>`,
			`<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system systemId="http://example.com/v.dtd" uri="v2.dtd"/>
</catalog>`,
		}
		m = NewManager(ManagerConfig{
			PrimaryCatalogs: []string{"file:///v.xml"},
			Fetch: func(uri string) (io.ReadCloser, error) {
				idx := calls
				if idx >= len(contents) {
					idx = len(contents) - 1
				}
				calls++
				return io.NopCloser(strings.NewReader(contents[idx])), nil
			},
		})

		first, err := m.LookupEntity("", "http://example.com/v.dtd", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.ResolvedURI).To(Equal("file:///v1.dtd"))

		second, err := m.LookupEntity("", "http://example.com/v.dtd", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(second.ResolvedURI).To(Equal("file:///v1.dtd"), "repeat lookups within a generation are memoized")

		m.Reload()

		third, err := m.LookupEntity("", "http://example.com/v.dtd", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(third.ResolvedURI).To(Equal("file:///v2.dtd"), "Reload must produce a fresh generation, not a stale memoized one")
	})
})
