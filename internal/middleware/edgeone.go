package middleware

import (
	"net/http"

	"party-map/internal/locate"
	"party-map/internal/logger"
)

// EdgeOne：解析 EdgeOne 改写的地理头并注入上下文，供定位来源读取；解析失败不阻断请求
func EdgeOne(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geo := locate.ParseEdgeOneGeo(r.Header)
		if geo.ClientIP == "" && geo.CityName == "" && geo.Latitude == 0 && geo.Longitude == 0 {
			next.ServeHTTP(w, r)
			return
		}
		logger.L().Debug("edgeone_geo_inject",
			"ip", geo.ClientIP,
			"country", geo.CountryName,
			"region", geo.RegionName,
			"city", geo.CityName,
			"isp", geo.ISP,
			"lat", geo.Latitude,
			"lon", geo.Longitude,
			"asn", geo.ASN,
		)
		next.ServeHTTP(w, r.WithContext(locate.WithEdgeOne(r.Context(), geo)))
	})
}
