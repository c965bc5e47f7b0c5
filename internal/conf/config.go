package conf

import (
	"fmt"
)

type Bootstrap struct {
	Server  *Server  `yaml:"server" json:"server"`
	Data    *Data    `yaml:"data" json:"data"`
	Gateway *Gateway `yaml:"gateway" json:"gateway"`
	Billing *Billing `yaml:"billing" json:"billing"`
	Log     *Log     `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	} `yaml:"redis" json:"redis"`
}

// Gateway 第三方支付网关配置
type Gateway struct {
	Name      string `yaml:"name" json:"name"` // 网关名称, fake 表示测试网关(同步完成)
	Version   string `yaml:"version" json:"version"`
	PartnerID string `yaml:"partner_id" json:"partner_id"`
	Secret    string `yaml:"secret" json:"secret"` // 签名密钥
	PayURL    string `yaml:"pay_url" json:"pay_url"`
	NotifyURL string `yaml:"notify_url" json:"notify_url"`
	ReturnURL string `yaml:"return_url" json:"return_url"`
	Timeout   string `yaml:"timeout" json:"timeout"` // 出站请求超时, 默认 30s
}

// Billing 业务配置
type Billing struct {
	// DefaultCommissionRate 平台默认抽成比例(百分比), 创作者未单独配置时使用
	DefaultCommissionRate string `yaml:"default_commission_rate" json:"default_commission_rate"`
	// StaleOrderHours 待支付订单超时关闭窗口(小时)
	StaleOrderHours int `yaml:"stale_order_hours" json:"stale_order_hours"`
	// RechargePackages 充值套餐: 支付金额 + 赠送金额
	RechargePackages []*RechargePackage `yaml:"recharge_packages" json:"recharge_packages"`
}

// RechargePackage 充值套餐
type RechargePackage struct {
	PackageID string `yaml:"package_id" json:"package_id"`
	Price     string `yaml:"price" json:"price"`
	Bonus     string `yaml:"bonus" json:"bonus"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Gateway == nil {
		return fmt.Errorf("gateway configuration is required")
	}
	if b.Gateway.Secret == "" {
		return fmt.Errorf("gateway.secret is required")
	}
	if b.Gateway.Name != "fake" {
		if b.Gateway.PayURL == "" {
			return fmt.Errorf("gateway.pay_url is required")
		}
		if b.Gateway.NotifyURL == "" {
			return fmt.Errorf("gateway.notify_url is required")
		}
	}
	if b.Billing == nil {
		return fmt.Errorf("billing configuration is required")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}

// FindRechargePackage 根据套餐ID查找充值套餐
func (b *Billing) FindRechargePackage(packageID string) *RechargePackage {
	for _, p := range b.RechargePackages {
		if p.PackageID == packageID {
			return p
		}
	}
	return nil
}
