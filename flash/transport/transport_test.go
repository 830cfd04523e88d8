package transport

import "testing"

func TestClassifyOpenErrBusy(t *testing.T) {
	err := classifyOpenErr("/dev/ttyUSB0", errString("device or resource busy"))
	if kindOf(err) != ErrPortBusy {
		t.Errorf("kind = %v, want ErrPortBusy", kindOf(err))
	}
}

func TestClassifyOpenErrNotPresent(t *testing.T) {
	err := classifyOpenErr("/dev/ttyUSB0", errString("no such file or directory"))
	if kindOf(err) != ErrNotPresent {
		t.Errorf("kind = %v, want ErrNotPresent", kindOf(err))
	}
}

func TestClassifyOpenErrIO(t *testing.T) {
	err := classifyOpenErr("/dev/ttyUSB0", errString("permission denied"))
	if kindOf(err) != ErrIO {
		t.Errorf("kind = %v, want ErrIO", kindOf(err))
	}
}

type errString string

func (e errString) Error() string { return string(e) }
