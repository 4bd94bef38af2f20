package cggtts

import "math"

// KlobucharParams 导航电文中的电离层参数 α0..α3, β0..β3
type KlobucharParams struct {
	Alpha [4]float64
	Beta  [4]float64
}

func polySemicircle(c [4]float64, x float64) float64 {
	return c[0] + x*(c[1]+x*(c[2]+x*c[3]))
}

// KlobucharDelay 单频 L1 电离层时延 s, 用于 MDIO.
// lat lon 接收机纬经度, elevation azimuth 卫星仰角方位角, 单位均为 deg;
// tow 为 GPS 周内秒
func KlobucharDelay(lat, lon, elevation, azimuth, tow float64, p KlobucharParams) float64 {
	// 角度换算成半周
	phiU, lambdaU := lat/180, lon/180
	e := elevation / 180
	a := azimuth * math.Pi / 180

	psi := 0.0137/(e+0.11) - 0.022
	phiI := phiU + psi*math.Cos(a)
	phiI = min(max(phiI, -0.416), 0.416)
	lambdaI := lambdaU + psi*math.Sin(a)/math.Cos(phiI*math.Pi)
	phiM := phiI + 0.064*math.Cos((lambdaI-1.617)*math.Pi)

	t := math.Mod(43200*lambdaI+tow, 86400)
	if t < 0 {
		t += 86400
	}

	amp := max(polySemicircle(p.Alpha, phiM), 0)
	per := max(polySemicircle(p.Beta, phiM), 72000)
	x := 2 * math.Pi * (t - 50400) / per
	f := 1 + 16*math.Pow(0.53-e, 3)

	if math.Abs(x) < 1.57 {
		return f * (5e-9 + amp*(1-x*x/2+x*x*x*x/24))
	}
	return f * 5e-9
}
