package device

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/modbus"
)

// fakeClient is a minimal modbus.Client stand-in driven entirely by
// test-supplied responses; it never touches a socket.
type fakeClient struct {
	holdingRegs map[uint16][]byte // keyed by address, pre-packed big-endian
	failRead    bool
	lastCoilWrite struct {
		address uint16
		value   uint16
	}
	lastRegWrite struct {
		address uint16
		value   uint16
	}
}

var _ modbus.Client = (*fakeClient)(nil)

func (f *fakeClient) ReadCoils(address, quantity uint16) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) WriteSingleCoil(address, value uint16) ([]byte, error) {
	f.lastCoilWrite.address = address
	f.lastCoilWrite.value = value
	return []byte{}, nil
}
func (f *fakeClient) WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	if f.failRead {
		return nil, errors.New("simulated transport failure")
	}
	raw, ok := f.holdingRegs[address]
	if !ok {
		return nil, errors.New("unexpected address in test")
	}
	return raw[:int(quantity)*2], nil
}
func (f *fakeClient) WriteSingleRegister(address, value uint16) ([]byte, error) {
	f.lastRegWrite.address = address
	f.lastRegWrite.value = value
	return []byte{}, nil
}
func (f *fakeClient) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress, writeQuantity uint16, value []byte) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) MaskWriteRegister(address, andMask, orMask uint16) ([]byte, error) {
	return nil, errors.New("not used in this test")
}
func (f *fakeClient) ReadFIFOQueue(address uint16) ([]byte, error) {
	return nil, errors.New("not used in this test")
}

func TestReadRegisters_HoldingSingleWord(t *testing.T) {
	dev := New("sensor-1", "10.0.0.5", 1, []Channel{
		{Type: AI, Hw: Hold, StartAddr: 100, Items: 1, ItemsPerCall: 1},
	}, nil, Normal, 3, time.Second)

	client := &fakeClient{holdingRegs: map[uint16][]byte{100: {0x00, 0x2A}}}
	words, err := dev.ReadRegisters(client, 0, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 1 || words[0] != 42 {
		t.Fatalf("expected [42], got %v", words)
	}
}

func TestReadFloats_UsesSwappedWordOrder(t *testing.T) {
	dev := New("float-dev", "10.0.0.6", 1, []Channel{
		{Type: AI, Hw: Hold, StartAddr: 200, Items: 2, ItemsPerCall: 2},
	}, nil, Normal, 3, time.Second)

	// 1.0f in IEEE-754 is 0x3F800000. The original firmware's
	// get_float builds i = (src[1]<<16) + src[0], and Read() stores
	// tmp[1] = first word received, tmp[0] = second word received.
	// So the first register on the wire carries the high half
	// (0x3F80) and the second the low half (0x0000).
	client := &fakeClient{holdingRegs: map[uint16][]byte{
		200: {0x3F, 0x80, 0x00, 0x00},
	}}

	floats, err := dev.ReadFloats(client, 0, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(floats) != 1 || floats[0] != 1.0 {
		t.Fatalf("expected [1.0], got %v", floats)
	}
}

func TestReadRegisters_TripsErrorGateAfterStrikes(t *testing.T) {
	dev := New("flaky", "10.0.0.7", 1, []Channel{
		{Type: AI, Hw: Hold, StartAddr: 0, Items: 1, ItemsPerCall: 1},
	}, nil, Normal, 2, time.Second)

	client := &fakeClient{failRead: true}
	now := time.Unix(0, 0)

	if _, err := dev.ReadRegisters(client, 0, now); err == nil {
		t.Fatal("expected error on first failed read")
	}
	if dev.InError() {
		t.Fatal("gate should not trip before reaching its strike count")
	}
	if _, err := dev.ReadRegisters(client, 0, now); err == nil {
		t.Fatal("expected error on second failed read")
	}
	if !dev.InError() {
		t.Fatal("gate should trip open after 2 consecutive failures")
	}
}

func TestReadBank_CyclesThroughWideChannel(t *testing.T) {
	dev := New("wide", "10.0.0.8", 1, []Channel{
		{Type: AI, Hw: Hold, StartAddr: 0, Items: 20, ItemsPerCall: 1},
	}, nil, Normal, 3, time.Second)

	addr1, count1 := dev.ReadBank(0)
	if addr1 != 0 || count1 != maxCallsPerRead {
		t.Fatalf("first bank should read [0, %d), got addr=%d count=%d", maxCallsPerRead, addr1, count1)
	}
	addr2, count2 := dev.ReadBank(0)
	if addr2 != maxCallsPerRead || count2 != maxCallsPerRead {
		t.Fatalf("second bank should continue from %d, got addr=%d count=%d", maxCallsPerRead, addr2, count2)
	}
	addr3, count3 := dev.ReadBank(0)
	if addr3 != 2*maxCallsPerRead || count3 != 4 {
		t.Fatalf("third bank should read the remaining 4 registers, got addr=%d count=%d", addr3, count3)
	}
	addr4, count4 := dev.ReadBank(0)
	if addr4 != 0 || count4 != maxCallsPerRead {
		t.Fatalf("bank counter should wrap back to the start, got addr=%d count=%d", addr4, count4)
	}
}

func TestWriteSingle_RejectsInputChannel(t *testing.T) {
	dev := New("ro", "10.0.0.9", 1, []Channel{
		{Type: AI, Hw: Hold, StartAddr: 0, Items: 1, ItemsPerCall: 1},
	}, nil, Normal, 3, time.Second)

	client := &fakeClient{}
	if err := dev.WriteSingle(client, 0, 0, 1, time.Unix(0, 0)); err == nil {
		t.Fatal("expected an error writing to an AI channel")
	}
}

func TestWriteSingle_Coil(t *testing.T) {
	dev := New("valve", "10.0.0.10", 1, []Channel{
		{Type: DO, Hw: Coil, StartAddr: 5, Items: 1, ItemsPerCall: 1},
	}, nil, Normal, 3, time.Second)

	client := &fakeClient{}
	if err := dev.WriteSingle(client, 0, 5, 1, time.Unix(0, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.lastCoilWrite.address != 5 || client.lastCoilWrite.value != 0xFF00 {
		t.Fatalf("expected coil write to address 5 with 0xFF00, got %+v", client.lastCoilWrite)
	}
}
