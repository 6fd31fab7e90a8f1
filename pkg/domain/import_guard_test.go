package domain_test

import (
	"testing"

	"ogencore/testutil"
)

// The domain package is the dependency floor: it must not reach into the
// service or infrastructure layers.
func TestDomainImportsNoInternalPackages(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/domain must stay free of internal dependencies")
}
