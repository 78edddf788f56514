package memory

import (
	"testing"

	"github.com/spacenexus/spacetoken-server/pkg/data/event/tests"
)

func TestEventMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
