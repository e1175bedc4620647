package control_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/nbctl/at"
	"i4.energy/across/nbctl/control"
)

func TestPDPContextControlQuery(t *testing.T) {
	t.Run("Parses quoted record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := control.NewMockSender(ctrl)
		sender.EXPECT().
			Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
			Return(response(at.OK, "+CGDCONT: 0,\"IP\",\"internet\""), nil)

		c := control.NewPDPContextControl(sender)
		if c.HasContextByTypeAndAPN("IP", "internet") {
			t.Fatal("expected no context before Query()")
		}
		if err := c.Query(context.Background()); err != nil {
			t.Fatalf("unexpected error from Query(): %v", err)
		}

		want := []control.PDPContext{{CID: 0, Type: "IP", APN: "internet"}}
		if got := c.Contexts(); !slices.Equal(got, want) {
			t.Errorf("expected %+v, got %+v", want, got)
		}
		if !c.HasContextByTypeAndAPN("IP", "internet") {
			t.Error("expected IP/internet to be found after Query()")
		}
		if c.HasContextByTypeAndAPN("IP", "internet2") || c.HasContextByTypeAndAPN("NONIP", "internet") {
			t.Error("both type and APN must match")
		}
	})

	t.Run("Multiple contexts ordered by CID, duplicates kept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := control.NewMockSender(ctrl)
		sender.EXPECT().
			Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
			Return(response(at.OK,
				"AT+CGDCONT?",
				"+CGDCONT: 2,\"NONIP\",\"iot.b\"",
				"+CGDCONT: 1,\"IP\",\"iot.a\",\"10.0.0.1\",0,0",
				"+CGDCONT: 2,\"IPV6\",\"iot.c\"",
				"+CSCON: 0",
			), nil)

		c := control.NewPDPContextControl(sender)
		if err := c.Query(context.Background()); err != nil {
			t.Fatalf("unexpected error from Query(): %v", err)
		}

		want := []control.PDPContext{
			{CID: 1, Type: "IP", APN: "iot.a"},
			{CID: 2, Type: "NONIP", APN: "iot.b"},
			{CID: 2, Type: "IPV6", APN: "iot.c"},
		}
		if got := c.Contexts(); !slices.Equal(got, want) {
			t.Errorf("expected %+v, got %+v", want, got)
		}
		if got := c.ContextsByCID(2); !slices.Equal(got, want[1:]) {
			t.Errorf("expected %+v for CID 2, got %+v", want[1:], got)
		}
		if got := c.ContextsByCID(7); len(got) != 0 {
			t.Errorf("expected nothing for CID 7, got %+v", got)
		}
	})

	t.Run("Tolerates short and malformed records", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := control.NewMockSender(ctrl)
		sender.EXPECT().
			Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
			Return(response(at.OK,
				"+CGDCONT: x,\"IP\",\"a\"",
				"+CGDCONT: 3,\"IP\"",
				"+CGDCONT: 4",
			), nil)

		c := control.NewPDPContextControl(sender)
		if err := c.Query(context.Background()); err != nil {
			t.Fatalf("unexpected error from Query(): %v", err)
		}

		want := []control.PDPContext{
			{CID: 0, Type: "IP", APN: "a"},
			{CID: 3, Type: "IP"},
			{CID: 4},
		}
		if got := c.Contexts(); !slices.Equal(got, want) {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("Repeated queries do not accumulate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := control.NewMockSender(ctrl)
		sender.EXPECT().
			Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
			Return(response(at.OK, "+CGDCONT: 0,\"IP\",\"internet\"", "+CGDCONT: 1,\"IP\",\"iot\""), nil).
			Times(3)

		c := control.NewPDPContextControl(sender)
		var first []control.PDPContext
		for i := range 3 {
			if err := c.Query(context.Background()); err != nil {
				t.Fatalf("unexpected error from Query() #%d: %v", i, err)
			}
			if i == 0 {
				first = c.Contexts()
				continue
			}
			if got := c.Contexts(); !slices.Equal(got, first) {
				t.Errorf("query #%d: expected %+v, got %+v", i, first, got)
			}
		}
		if len(first) != 2 {
			t.Errorf("expected 2 contexts, got %d", len(first))
		}
	})

	t.Run("Failed query keeps the cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := control.NewMockSender(ctrl)
		gomock.InOrder(
			sender.EXPECT().
				Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
				Return(response(at.OK, "+CGDCONT: 0,\"IP\",\"internet\""), nil),
			sender.EXPECT().
				Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
				Return(nil, errLinkDown),
			sender.EXPECT().
				Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
				Return(response(at.ERROR), nil),
		)

		c := control.NewPDPContextControl(sender)
		if err := c.Query(context.Background()); err != nil {
			t.Fatalf("unexpected error from Query(): %v", err)
		}
		if err := c.Query(context.Background()); !errors.Is(err, control.ErrTransport) {
			t.Fatalf("expected ErrTransport, got: %v", err)
		}
		if err := c.Query(context.Background()); !errors.Is(err, control.ErrProtocol) {
			t.Fatalf("expected ErrProtocol, got: %v", err)
		}
		if !c.HasContextByTypeAndAPN("IP", "internet") {
			t.Error("expected cache to survive failed queries")
		}
	})

	t.Run("Failed first query leaves cache empty", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		sender := control.NewMockSender(ctrl)
		sender.EXPECT().Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).Return(nil, errLinkDown)

		c := control.NewPDPContextControl(sender)
		if err := c.Query(context.Background()); err == nil {
			t.Fatal("expected Query() to fail")
		}
		if c.HasContextByTypeAndAPN("IP", "internet") {
			t.Error("expected no context after failed Query()")
		}
	})
}

func TestPDPContextControlGet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := control.NewMockSender(ctrl)
	sender.EXPECT().
		Send(gomock.Any(), "AT+CGDCONT?", gomock.Any()).
		Return(response(at.OK, "+CGDCONT: 1,\"NONIP\",\"iot\""), nil)

	got, err := control.NewPDPContextControl(sender).Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []control.PDPContext{{CID: 1, Type: "NONIP", APN: "iot"}}
	if !slices.Equal(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestPDPContextControlSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := control.NewMockSender(ctrl)
	sender.EXPECT().
		Send(gomock.Any(), `AT+CGDCONT=1,"IP","internet.iot"`, gomock.Any()).
		Return(response(at.OK), nil)

	c := control.NewPDPContextControl(sender)
	if err := c.Set(context.Background(), control.PDPContext{CID: 1, Type: "IP", APN: "internet.iot"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Contexts()) != 0 {
		t.Error("Set() must not modify the cache")
	}
}
