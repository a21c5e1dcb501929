package store

import (
	"github.com/foxseedlab/yomiagen/internal/store"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, store.Factory(func(cacheDir string) store.SnapshotStore {
		return NewFileStore(cacheDir)
	}))
}
