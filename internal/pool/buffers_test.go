package pool

import "testing"

func TestGetDatagramBufferSize(t *testing.T) {
	buf := GetDatagramBuffer()
	if len(buf) != DatagramBufferSize {
		t.Errorf("buffer size = %d, want %d", len(buf), DatagramBufferSize)
	}
}

func TestDatagramBufferRoundTrip(t *testing.T) {
	buf := GetDatagramBuffer()
	copy(buf, []byte("test data"))
	PutDatagramBuffer(buf)

	buf2 := GetDatagramBuffer()
	if len(buf2) != DatagramBufferSize {
		t.Errorf("buffer size after round trip = %d, want %d", len(buf2), DatagramBufferSize)
	}
}

func TestPutDatagramBufferUndersizedIgnored(t *testing.T) {
	small := make([]byte, 100)
	PutDatagramBuffer(small) // must not panic, must not be pooled
}

func BenchmarkDatagramBufferPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetDatagramBuffer()
		PutDatagramBuffer(buf)
	}
}
