package scanner

import "NmapVulners/internal/model"

const portStateFiltered = "filtered"

// ActiveHosts 返回状态为 up 的主机，保持文档顺序
func ActiveHosts(doc *model.ScanDocument) []model.Host {
	if doc == nil {
		return nil
	}

	var hosts []model.Host
	for _, host := range doc.Hosts {
		if host.IsUp() {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// ActivePorts 返回未被过滤的端口，缺少 state 元素的端口也保留
func ActivePorts(host model.Host) []model.Port {
	var ports []model.Port
	for _, port := range host.Ports {
		if port.StateName() != portStateFiltered {
			ports = append(ports, port)
		}
	}
	return ports
}
