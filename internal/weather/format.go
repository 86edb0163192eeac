package weather

import (
	"strconv"
	"strings"
)

// Format renders the report body: current conditions, today's forecast, air
// quality when known and a short list of advice.
func Format(r Report) string {
	var b strings.Builder
	now, today := r.Now, r.Today

	b.WriteString("当前: " + dash(now.Text.String()) + " " + dash(now.Temp.String()) + "°C\n")
	b.WriteString("风力: " + dash(now.WindDir.String()) + " " + dash(now.WindScale.String()) + "级\n")
	b.WriteString("湿度: " + dash(now.Humidity.String()) + "%\n")

	b.WriteString("\n今日预报:\n")
	b.WriteString("   " + dash(today.TextDay.String()) + " 转 " + dash(today.TextNight.String()) + "\n")
	b.WriteString("   " + dash(today.TempMin.String()) + "°C ~ " + dash(today.TempMax.String()) + "°C\n")

	if r.Air != nil {
		b.WriteString("\n空气质量: " + r.Air.Category.String() + " (AQI " + dash(r.Air.AQI.String()) + ")\n")
	}

	if advice := Advice(r); len(advice) > 0 {
		b.WriteString("\n建议:\n")
		for _, a := range advice {
			b.WriteString("   " + a + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// Advice returns the reminders that apply: strong UV above index 7, rain
// when any precipitation is forecast, and cold below 10°C.
func Advice(r Report) []string {
	var out []string
	if r.Today.UVIndex.Int(0) > 7 {
		out = append(out, "紫外线强，注意防晒")
	}
	if p, err := strconv.ParseFloat(r.Today.Precip.String(), 64); err == nil && p > 0 {
		out = append(out, "可能有雨，记得带伞")
	}
	if r.Now.Temp.Int(999) < 10 {
		out = append(out, "气温较低，注意保暖")
	}
	return out
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
