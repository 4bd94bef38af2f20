package cggtts

import "math"

const masToRad = math.Pi / (180 * 3600 * 1000)

// HelmertParams 七参数坐标转换, 平移 m, 尺度 ppb, 旋转 mas
type HelmertParams struct {
	Translation [3]float64
	Scale       float64
	Rotation    [3]float64
	Frame       string // 转换后的参考框架
}

// Helmert 小角度近似下的七参数转换, 用于不同 ITRF 之间换算天线坐标
func (c Coordinates) Helmert(p HelmertParams) Coordinates {
	d := p.Scale * 1e-9
	rx, ry, rz := p.Rotation[0]*masToRad, p.Rotation[1]*masToRad, p.Rotation[2]*masToRad
	out := Coordinates{
		X:     c.X + p.Translation[0] + d*c.X - rz*c.Y + ry*c.Z,
		Y:     c.Y + p.Translation[1] + rz*c.X + d*c.Y - rx*c.Z,
		Z:     c.Z + p.Translation[2] - ry*c.X + rx*c.Y + d*c.Z,
		Frame: p.Frame,
	}
	if out.Frame == "" {
		out.Frame = c.Frame
	}
	return out
}
