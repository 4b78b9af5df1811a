// Package http 搜索服务 HTTP 监听参数。
package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

type Options struct {
	Addr string `json:"addr" mapstructure:"addr"`
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout 为 0 表示不限制，流式接口依赖这一点。
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// AllowOrigins CORS 来源，"*" 表示任意来源。
	AllowOrigins []string `json:"allow-origins" mapstructure:"allow-origins"`
}

// NewOptions 默认监听 :8000。
func NewOptions() *Options {
	return &Options{
		Addr:         ":8000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		AllowOrigins: []string{"*"},
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."

	fs.StringVar(&o.Addr, p+"addr", o.Addr, "Address the search API listens on.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Maximum time to read a request including its body.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Timeout for response writes, 0 disables.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "Keep-alive idle timeout.")
	fs.StringSliceVar(&o.AllowOrigins, p+"allow-origins", o.AllowOrigins, "Origins allowed by CORS, * for any.")
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive, got %s", o.ReadTimeout))
	}
	if o.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must not be negative, got %s", o.WriteTimeout))
	}
	return errs
}
