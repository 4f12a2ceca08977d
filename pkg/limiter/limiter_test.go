package limiter

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestMethodLimiter_Key(t *testing.T) {
	l := NewMethodLimiter().AddBuckets(
		BucketRule{Key: "/api/configs", FillInterval: time.Second, Capacity: 1, Quantum: 1},
		BucketRule{Key: "/api/configs/http/test", FillInterval: time.Second, Capacity: 1, Quantum: 1},
	)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/configs/http/test/1", nil)

	key := l.Key(c)
	if key != "/api/configs/http/test" {
		t.Fatalf("Key() = %q", key)
	}
	bucket, ok := l.GetBucket(key)
	if !ok {
		t.Fatal("bucket not found")
	}
	if bucket.TakeAvailable(1) != 1 {
		t.Error("first take should succeed")
	}
	if bucket.TakeAvailable(1) != 0 {
		t.Error("second take should be limited")
	}
}
