package fuzz

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	grpcserver "github.com/Billy-Davies-2/basket-tracker/internal/grpc"
	"github.com/Billy-Davies-2/basket-tracker/internal/live"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/pubsub"
)

func liveServer(t *testing.T) *grpcserver.Server {
	t.Helper()
	ps := pubsub.New()
	m := live.NewManager(dal.NewRepository(dal.NewMemoryStore()), live.Options{Publisher: ps})
	if _, err := m.NewSession(models.Game{ID: "g1", Roster: roster}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartClock(); err != nil {
		t.Fatal(err)
	}
	return grpcserver.NewServer(m, ps)
}

// FuzzGRPCRecordEvent fuzzes the RecordEvent RPC
func FuzzGRPCRecordEvent(f *testing.F) {
	f.Add("P1", "home", "3PT_MADE")
	f.Add("", "away", "DREB")
	f.Add("", "", "FOUL")
	f.Add("P2", "home", "CAMBIO_OUT")
	f.Add("P3", "x", "???")

	f.Fuzz(func(t *testing.T, playerID, team, typ string) {
		server := liveServer(t)
		req, err := structpb.NewStruct(map[string]any{"playerId": playerID, "team": team, "type": typ})
		if err != nil {
			t.Skip("not valid UTF-8")
		}

		_, err = server.RecordEvent(context.Background(), req)
		if status.Code(err) == codes.Internal {
			t.Fatalf("internal error for %q/%q/%q: %v", playerID, team, typ, err)
		}
	})
}

// FuzzGRPCSubstitute fuzzes the Substitute RPC
func FuzzGRPCSubstitute(f *testing.F) {
	f.Add("P1", "P6")
	f.Add("P6", "P1")
	f.Add("", "P7")

	f.Fuzz(func(t *testing.T, out, in string) {
		server := liveServer(t)
		req, err := structpb.NewStruct(map[string]any{"out": out, "in": in})
		if err != nil {
			t.Skip("not valid UTF-8")
		}

		_, err = server.Substitute(context.Background(), req)
		if status.Code(err) == codes.Internal {
			t.Fatalf("internal error for %q/%q: %v", out, in, err)
		}
	})
}

// FuzzGRPCUndoRedo drives undo/redo in arbitrary order; neither may fail internally
func FuzzGRPCUndoRedo(f *testing.F) {
	f.Add([]byte{0, 0, 1, 1, 1})
	f.Add([]byte{1, 0, 2, 0, 1})

	f.Fuzz(func(t *testing.T, ops []byte) {
		server := liveServer(t)
		ctx := context.Background()
		sub, _ := structpb.NewStruct(map[string]any{"out": "P5", "in": "P6"})
		server.Substitute(ctx, sub)

		for _, op := range ops {
			var err error
			switch op % 3 {
			case 0:
				_, err = server.Undo(ctx, nil)
			case 1:
				_, err = server.Redo(ctx, nil)
			default:
				rec, _ := structpb.NewStruct(map[string]any{"playerId": "P1", "type": "ASSIST"})
				_, err = server.RecordEvent(ctx, rec)
			}
			if status.Code(err) == codes.Internal {
				t.Fatalf("internal error: %v", err)
			}
		}

		view, err := server.GetSession(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if n := len(view.Fields["onCourt"].GetListValue().GetValues()); n != models.CourtSize {
			t.Fatalf("expected %d on court, got %d", models.CourtSize, n)
		}
	})
}
