package internal_test

import (
	"net"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/thiagocrux/simcasi/internal"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Security: internal.SecurityConfig{
			AccessTokenSecret:  strings.Repeat("a", 32),
			RefreshTokenSecret: strings.Repeat("r", 32),
		},
		Database: internal.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	It("fills in defaults", func() {
		cfg := &internal.Config{}
		cfg.ApplyDefaults()

		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Security.Issuer).To(Equal("simcasi"))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(15 * time.Minute))
		Expect(cfg.Security.RefreshTokenDuration).To(Equal(7 * 24 * time.Hour))
		Expect(cfg.Security.PasswordResetTTL).To(Equal(time.Hour))
		Expect(cfg.Security.BCryptCost).To(Equal(12))
		Expect(cfg.Cookies.Path).To(Equal("/"))
		Expect(cfg.Cookies.SameSite).To(Equal("lax"))
		Expect(cfg.Sweeper.Schedule).To(Equal("@every 1h"))
	})

	It("keeps explicit values", func() {
		cfg := &internal.Config{Server: internal.ServerConfig{Port: 9090}}
		cfg.Security.AccessTokenDuration = 5 * time.Minute
		cfg.ApplyDefaults()

		Expect(cfg.Server.Port).To(Equal(9090))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(5 * time.Minute))
	})

	It("accepts a complete configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	DescribeTable("rejects unsafe settings",
		func(mutate func(*internal.Config), fragment string) {
			cfg := validConfig()
			mutate(cfg)

			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(fragment))
		},
		Entry("short access secret", func(c *internal.Config) { c.Security.AccessTokenSecret = "short" }, "access_token_secret"),
		Entry("short refresh secret", func(c *internal.Config) { c.Security.RefreshTokenSecret = "short" }, "refresh_token_secret"),
		Entry("shared secret", func(c *internal.Config) { c.Security.RefreshTokenSecret = c.Security.AccessTokenSecret }, "must differ"),
		Entry("access outliving refresh", func(c *internal.Config) { c.Security.AccessTokenDuration = c.Security.RefreshTokenDuration }, "shorter than"),
		Entry("bcrypt cost", func(c *internal.Config) { c.Security.BCryptCost = 40 }, "bcrypt_cost"),
		Entry("same site none", func(c *internal.Config) { c.Cookies.SameSite = "none" }, "same_site"),
		Entry("idle above open", func(c *internal.Config) { c.Database.MaxIdleConns = 50 }, "max_idle_conns"),
		Entry("no attempts", func(c *internal.Config) { c.Throttle.MaxAttempts = -1 }, "max_attempts"),
		Entry("bad proxy network", func(c *internal.Config) { c.Throttle.TrustedProxies = []string{"10.0.0.0/33"} }, "trusted proxy"),
		Entry("bad proxy address", func(c *internal.Config) { c.Throttle.TrustedProxies = []string{"proxy.local"} }, "trusted proxy"),
	)

	It("reports every failing section", func() {
		cfg := validConfig()
		cfg.Security.AccessTokenSecret = ""
		cfg.Cookies.SameSite = "none"

		err := cfg.Validate()
		Expect(err).To(MatchError(And(ContainSubstring("security config"), ContainSubstring("cookie config"))))
	})

	It("splits allowed origins", func() {
		server := internal.ServerConfig{AllowedOrigins: " https://a.test, ,https://b.test "}
		Expect(server.Origins()).To(Equal([]string{"https://a.test", "https://b.test"}))
	})

	It("parses trusted proxies", func() {
		throttle := internal.ThrottleConfig{TrustedProxies: []string{"10.1.0.0/16", " 192.0.2.7 ", "2001:db8::1"}}

		networks, err := throttle.ProxyNetworks()
		Expect(err).NotTo(HaveOccurred())
		Expect(networks).To(HaveLen(3))
		Expect(networks[0].Contains(net.ParseIP("10.1.200.3"))).To(BeTrue())
		Expect(networks[1].Contains(net.ParseIP("192.0.2.7"))).To(BeTrue())
		Expect(networks[1].Contains(net.ParseIP("192.0.2.8"))).To(BeFalse())
		Expect(networks[2].Contains(net.ParseIP("2001:db8::1"))).To(BeTrue())
	})

	It("maps same site modes", func() {
		Expect((&internal.CookieConfig{SameSite: "Strict"}).SameSiteMode()).To(Equal(http.SameSiteStrictMode))
		Expect((&internal.CookieConfig{SameSite: "lax"}).SameSiteMode()).To(Equal(http.SameSiteLaxMode))
	})

	It("loads from the environment", func() {
		GinkgoT().Setenv("HTTP_PORT", "9191")
		GinkgoT().Setenv("JWT_ACCESS_TTL", "10m")
		GinkgoT().Setenv("COOKIE_SECURE", "false")
		GinkgoT().Setenv("TRUSTED_PROXIES", "10.1.0.0/16, 192.0.2.7")

		cfg := internal.LoadConfigFromEnv()
		Expect(cfg.Server.Port).To(Equal(9191))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(10 * time.Minute))
		Expect(cfg.Cookies.Secure).To(BeFalse())
		Expect(cfg.Throttle.TrustedProxies).To(Equal([]string{"10.1.0.0/16", "192.0.2.7"}))
	})
})
