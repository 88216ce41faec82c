package event

import (
	"testing"

	"github.com/google/uuid"
)

func TestCommandType_RoundTrip(t *testing.T) {
	for ct := CommandTypeSubmitBid; ct <= CommandTypeExecuteLiquidation; ct++ {
		if got := ParseCommandType(ct.String()); got != ct {
			t.Errorf("ParseCommandType(%q) = %v, want %v", ct.String(), got, ct)
		}
	}
	if got := ParseCommandType("Deposit"); got != CommandTypeUnknown {
		t.Errorf("unknown name: got %v, want Unknown", got)
	}
}

func TestCommands_ImplementCommand(t *testing.T) {
	h := Header{ID: uuid.New(), Sender: "alice", Time: 42}
	cmds := map[CommandType]Command{
		CommandTypeSubmitBid:          &SubmitBid{Header: h},
		CommandTypeActivateBids:       &ActivateBids{Header: h},
		CommandTypeRetractBid:         &RetractBid{Header: h},
		CommandTypeClaimLiquidations:  &ClaimLiquidations{Header: h},
		CommandTypeConsumePool:        &ConsumePool{Header: h},
		CommandTypeExecuteLiquidation: &ExecuteLiquidation{Header: h},
	}
	for want, cmd := range cmds {
		if cmd.CommandType() != want {
			t.Errorf("%T: got %v, want %v", cmd, cmd.CommandType(), want)
		}
		if cmd.CommandID() != h.ID || cmd.Caller() != "alice" || cmd.BlockTime() != 42 {
			t.Errorf("%T: header not promoted", cmd)
		}
	}
}
