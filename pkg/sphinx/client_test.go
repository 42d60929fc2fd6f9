package sphinx

import (
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/config"
	"github.com/go-sql-driver/mysql"
)

func TestDSN(t *testing.T) {
	cfg := config.SphinxConfig{
		Host:        "searchd",
		Port:        9306,
		ReadTimeout: 3 * time.Second,
	}
	parsed, err := mysql.ParseDSN(DSN(cfg))
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if parsed.Addr != "searchd:9306" {
		t.Errorf("addr = %q", parsed.Addr)
	}
	if !parsed.MultiStatements {
		t.Error("multi statements must be enabled for facet/meta batches")
	}
	if !parsed.InterpolateParams {
		t.Error("params must be interpolated client side")
	}
	if parsed.ReadTimeout != 3*time.Second {
		t.Errorf("read timeout = %v", parsed.ReadTimeout)
	}
}
