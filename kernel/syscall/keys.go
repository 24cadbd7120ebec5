package syscall

// Negative sentinels returned by readkey/getc for non-printable keys. ASCII
// code points for printable keys are returned as-is (non-negative).
const (
	KeyUp     int32 = -1
	KeyDown   int32 = -2
	KeyLeft   int32 = -3
	KeyRight  int32 = -4
	KeyHome   int32 = -5
	KeyEnd    int32 = -6
	KeyPgUp   int32 = -7
	KeyPgDown int32 = -8
	KeyInsert int32 = -9
	KeyDelete int32 = -10
)
