package rddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/ndw/xmlresolver/api/v1"
)

const sampleDoc = `<html>
<head><title>Example namespace</title></head>
<body>
<div xml:base="docs/">
  <rddl:resource xlink:role="http://www.w3.org/2001/XMLSchema"
     xlink:arcrole="http://www.rddl.org/purposes#schema-validation"
     xlink:href="schema.xsd">schema</rddl:resource>
</div>
</body>
</html>`

func TestFindResourceMatchesNatureAndPurpose(t *testing.T) {
	res, found, err := FindResource(strings.NewReader(sampleDoc), "http://example.com/ns.html",
		v1.NatureXMLSchema, v1.PurposeSchemaValidation)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "http://example.com/docs/schema.xsd", res.Href)
}

func TestFindResourceNoMatch(t *testing.T) {
	_, found, err := FindResource(strings.NewReader(sampleDoc), "http://example.com/ns.html",
		v1.NatureExternalEntity, "")
	require.NoError(t, err)
	assert.False(t, found)
}
