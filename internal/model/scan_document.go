package model

import "errors"

// ErrNoAddress 主机没有任何地址
var ErrNoAddress = errors.New("主机缺少地址信息")

// ScanDocument nmap XML 报告的根节点
type ScanDocument struct {
	Scanner string `xml:"scanner,attr"`
	Args    string `xml:"args,attr"`
	Start   string `xml:"startstr,attr"`
	Hosts   []Host `xml:"host"`
}

// Host 单个被扫描主机
type Host struct {
	Status    *HostStatus `xml:"status"`
	Addresses []Address   `xml:"address"`
	Hostnames []Hostname  `xml:"hostnames>hostname"`
	Ports     []Port      `xml:"ports>port"`
}

// HostStatus 主机存活状态 (up/down/unknown)
type HostStatus struct {
	State  string `xml:"state,attr"`
	Reason string `xml:"reason,attr"`
}

type Address struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"` // ipv4, ipv6, mac
	Vendor   string `xml:"vendor,attr"`
}

type Hostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// Port 端口及其可选的状态和服务
type Port struct {
	Protocol string     `xml:"protocol,attr"`
	PortID   int        `xml:"portid,attr"`
	State    *PortState `xml:"state"`
	Service  *Service   `xml:"service"`
}

// PortState 端口可达状态 (open/closed/filtered/...)
type PortState struct {
	State  string `xml:"state,attr"`
	Reason string `xml:"reason,attr"`
}

// Service 服务识别结果，属性缺失时为空字符串
type Service struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
	Extra   string `xml:"extrainfo,attr"`
}

// IsUp 主机状态是否为 up
func (h Host) IsUp() bool {
	return h.Status != nil && h.Status.State == "up"
}

// PrimaryAddress 返回第一个地址，nmap 输出中通常为 IPv4
func (h Host) PrimaryAddress() (string, error) {
	if len(h.Addresses) == 0 || h.Addresses[0].Addr == "" {
		return "", ErrNoAddress
	}
	return h.Addresses[0].Addr, nil
}

// StateName 返回端口状态，缺少 state 元素时为空
func (p Port) StateName() string {
	if p.State == nil {
		return ""
	}
	return p.State.State
}
