// SPDX-License-Identifier: MIT

package callback

import (
	"context"
	"testing"

	"github.com/tizonia-project/tizonia-go/internal/events"
	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

type recordingEnqueuer struct {
	got []events.Event
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, ev events.Event) error {
	r.got = append(r.got, ev)
	return nil
}

var testHandle = ilcore.ComponentHandleForTest(1, "audio_decoder.mp3", "decoder")

func TestOnEventTranslatesStateSetComplete(t *testing.T) {
	enq := &recordingEnqueuer{}
	a := New(context.Background(), enq)
	cb := a.Callbacks()

	cb.OnEvent(testHandle, ilcore.RawEvent{
		Kind:  ilcore.EventCmdComplete,
		Data1: int(ilcore.CommandStateSet),
		Data2: int(ilcore.StateIdle),
	})

	if len(enq.got) != 1 {
		t.Fatalf("got %d events, want 1", len(enq.got))
	}
	ev := enq.got[0]
	if ev.Kind != events.KindOmxTrans || ev.Handle != testHandle || ev.ReachedStat != ilcore.StateIdle {
		t.Fatalf("translated event = %+v, want KindOmxTrans/%v/StateIdle", ev, testHandle)
	}
}

func TestOnEventTranslatesPortDisableAndEnable(t *testing.T) {
	enq := &recordingEnqueuer{}
	a := New(context.Background(), enq)
	cb := a.Callbacks()

	cb.OnEvent(testHandle, ilcore.RawEvent{Kind: ilcore.EventCmdComplete, Data1: int(ilcore.CommandPortDisable), Port: 1})
	cb.OnEvent(testHandle, ilcore.RawEvent{Kind: ilcore.EventCmdComplete, Data1: int(ilcore.CommandPortEnable), Port: 1})

	if len(enq.got) != 2 {
		t.Fatalf("got %d events, want 2", len(enq.got))
	}
	if enq.got[0].Kind != events.KindOmxPortDisabled {
		t.Errorf("first event kind = %v, want KindOmxPortDisabled", enq.got[0].Kind)
	}
	if enq.got[1].Kind != events.KindOmxPortEnabled {
		t.Errorf("second event kind = %v, want KindOmxPortEnabled", enq.got[1].Kind)
	}
}

func TestOnEventTranslatesErrorAndFormatAndEOS(t *testing.T) {
	enq := &recordingEnqueuer{}
	a := New(context.Background(), enq)
	cb := a.Callbacks()

	cb.OnEvent(testHandle, ilcore.RawEvent{Kind: ilcore.EventError, Err: &ilcore.Err{Code: ilcore.ErrorTimeout}})
	cb.OnEvent(testHandle, ilcore.RawEvent{Kind: ilcore.EventFormatDetected})
	cb.OnEvent(testHandle, ilcore.RawEvent{Kind: ilcore.EventBufferFlag, Flags: 1})

	want := []events.Kind{events.KindOmxErr, events.KindOmxFormatDetected, events.KindOmxEos}
	if len(enq.got) != len(want) {
		t.Fatalf("got %d events, want %d", len(enq.got), len(want))
	}
	for i, w := range want {
		if enq.got[i].Kind != w {
			t.Errorf("event %d kind = %v, want %v", i, enq.got[i].Kind, w)
		}
	}
	if enq.got[0].Err == nil || enq.got[0].Err.Code != ilcore.ErrorTimeout {
		t.Errorf("error event did not carry the raw Err: %+v", enq.got[0])
	}
}

func TestCloseDropsSubsequentCallbacks(t *testing.T) {
	enq := &recordingEnqueuer{}
	a := New(context.Background(), enq)
	cb := a.Callbacks()

	a.Close()
	cb.OnEvent(testHandle, ilcore.RawEvent{Kind: ilcore.EventFormatDetected})

	if len(enq.got) != 0 {
		t.Fatalf("got %d events after Close, want 0", len(enq.got))
	}
}

func TestEmptyBufferAndFillBufferCallbacksAreNoops(t *testing.T) {
	enq := &recordingEnqueuer{}
	a := New(context.Background(), enq)
	cb := a.Callbacks()

	cb.OnEmptyBufferDone(testHandle, 0)
	cb.OnFillBufferDone(testHandle, 0)

	if len(enq.got) != 0 {
		t.Fatalf("got %d events from buffer-done callbacks, want 0", len(enq.got))
	}
}
