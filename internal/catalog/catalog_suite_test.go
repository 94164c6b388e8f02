package catalog

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCatalogSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "catalog suite")
}
