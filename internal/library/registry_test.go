package library_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/library/mocks"
	"github.com/starford/datalib/internal/models"
	"github.com/starford/datalib/internal/store"
)

func TestRegistry_OneLibraryPerUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	table.EXPECT().Select(gomock.Any(), gomock.Any()).Return([]models.DataItem{}, nil).Times(2)

	reg := library.NewRegistry(table, nil)
	defer reg.Close()

	var wg sync.WaitGroup
	libs := make([]*library.Library, 10)
	for i := range libs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lib, err := reg.For(context.Background(), "u1")
			if err != nil {
				t.Errorf("For: %v", err)
				return
			}
			libs[i] = lib
		}(i)
	}
	wg.Wait()
	for _, lib := range libs[1:] {
		if lib != libs[0] {
			t.Fatal("registry returned different libraries for the same user")
		}
	}
	if libs[0].Scope().OwnerID != "u1" {
		t.Errorf("owner = %q, want u1", libs[0].Scope().OwnerID)
	}

	if _, err := reg.For(context.Background(), "u2"); err != nil {
		t.Fatalf("For u2: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}
}

func TestRegistry_FailedFetchRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	gomock.InOrder(
		table.EXPECT().Select(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down")),
		table.EXPECT().Select(gomock.Any(), gomock.Any()).Return([]models.DataItem{}, nil),
	)

	reg := library.NewRegistry(table, nil)
	defer reg.Close()

	if _, err := reg.For(context.Background(), "u1"); err == nil {
		t.Fatal("expected first For to fail")
	}
	if reg.Len() != 0 {
		t.Errorf("failed library cached")
	}
	if _, err := reg.For(context.Background(), "u1"); err != nil {
		t.Fatalf("retry For: %v", err)
	}
}

func TestRegistry_CancelledCallerDoesNotFailOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	release := make(chan struct{})
	started := make(chan struct{})
	table.EXPECT().Select(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ store.Filter) ([]models.DataItem, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []models.DataItem{{ID: "a", UserID: "u1"}}, nil
		})

	reg := library.NewRegistry(table, nil)
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := reg.For(ctx, "u1")
		firstErr <- err
	}()
	<-started

	second := make(chan *library.Library, 1)
	go func() {
		lib, err := reg.For(context.Background(), "u1")
		if err != nil {
			t.Errorf("second For: %v", err)
		}
		second <- lib
	}()

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first For err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(release)
	select {
	case lib := <-second:
		if lib == nil || len(lib.Items()) != 1 {
			t.Fatalf("second caller got %v", lib)
		}
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}
