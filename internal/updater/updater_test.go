package updater

import (
	"runtime"
	"testing"

	"github.com/guiyumin/chnl/internal/core/version"
	"github.com/stretchr/testify/assert"
)

func TestPlatformAssetName(t *testing.T) {
	assert.Equal(t, "chnl_"+runtime.GOOS+"_"+runtime.GOARCH, PlatformAssetName())
}

func TestCurrentVersionDropsPrefix(t *testing.T) {
	orig := version.Version
	t.Cleanup(func() { version.Version = orig })

	version.Version = "v1.2.3"
	assert.Equal(t, "1.2.3", currentVersion())

	version.Version = "1.2.3"
	assert.Equal(t, "1.2.3", currentVersion())
}
