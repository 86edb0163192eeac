// Package weather resolves the user's district through AMap and reads the
// current conditions, today's forecast and air quality from QWeather.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/pushkit/internal/coerce"
	"github.com/hoanghai1803/pushkit/internal/fetch"
)

const (
	defaultAmapBase     = "https://restapi.amap.com"
	defaultQWeatherBase = "https://devapi.qweather.com"
	defaultGeoBase      = "https://geoapi.qweather.com"
)

var (
	// ErrMissingKey is returned when a provider key is not configured.
	ErrMissingKey = errors.New("missing api key")
	// ErrProvider is matched by every *ProviderError.
	ErrProvider = errors.New("weather provider error")
	// ErrNoCity is returned when QWeather cannot resolve the location.
	ErrNoCity = errors.New("qweather city lookup failed")
)

// ProviderError is a well-formed provider response carrying a failure code.
type ProviderError struct {
	Provider string
	Endpoint string
	Code     string
}

func (e *ProviderError) Error() string {
	code := e.Code
	if code == "" {
		code = "unknown"
	}
	return fmt.Sprintf("%s %s: code %s", e.Provider, e.Endpoint, code)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Options configures a Client.
type Options struct {
	QWeatherKey string
	// QWeatherHost is a dedicated API host such as "abc.re.qweatherapi.com".
	// When set it serves both weather and geo lookups.
	QWeatherHost string
	AmapKey      string
	// AmapBase overrides the AMap REST endpoint.
	AmapBase string
	Route    string
}

// Client queries AMap and QWeather through a fetch.Doer.
type Client struct {
	http fetch.Doer
	opts Options
}

// NewClient returns a Client. Both keys are required.
func NewClient(d fetch.Doer, opts Options) (*Client, error) {
	opts.QWeatherKey = strings.TrimSpace(opts.QWeatherKey)
	opts.AmapKey = strings.TrimSpace(opts.AmapKey)
	if opts.QWeatherKey == "" {
		return nil, fmt.Errorf("qweather: %w", ErrMissingKey)
	}
	if opts.AmapKey == "" {
		return nil, fmt.Errorf("amap: %w", ErrMissingKey)
	}
	if opts.AmapBase == "" {
		opts.AmapBase = defaultAmapBase
	}
	opts.QWeatherHost = NormalizeHost(opts.QWeatherHost)
	return &Client{http: d, opts: opts}, nil
}

// Location is a resolved place. Lon and Lat may be empty when only the
// city name is known.
type Location struct {
	Province string
	City     string
	District string
	Adcode   string
	Lon      string
	Lat      string
}

// Label is the "city district" heading, with duplicates collapsed.
func (l Location) Label() string {
	if l.District == "" || l.District == l.City {
		return l.City
	}
	return strings.TrimSpace(l.City + " " + l.District)
}

func (l Location) hasCoordinates() bool { return l.Lon != "" && l.Lat != "" }

// Now is the current observation.
type Now struct {
	Text      coerce.Text `json:"text"`
	Temp      coerce.Text `json:"temp"`
	WindDir   coerce.Text `json:"windDir"`
	WindScale coerce.Text `json:"windScale"`
	Humidity  coerce.Text `json:"humidity"`
}

// Day is one forecast day.
type Day struct {
	TextDay   coerce.Text `json:"textDay"`
	TextNight coerce.Text `json:"textNight"`
	TempMin   coerce.Text `json:"tempMin"`
	TempMax   coerce.Text `json:"tempMax"`
	UVIndex   coerce.Text `json:"uvIndex"`
	Precip    coerce.Text `json:"precip"`
}

// Air is the current air quality.
type Air struct {
	Category coerce.Text `json:"category"`
	AQI      coerce.Text `json:"aqi"`
}

// Report is everything the weather message is built from. Air is nil when
// the location has no air-quality coverage.
type Report struct {
	Location Location
	Now      Now
	Today    Day
	Air      *Air
}

// Locate resolves the location to report on. An override of "lon,lat" is
// reverse geocoded, a place name is geocoded first, and an empty override
// falls back to IP location.
func (c *Client) Locate(ctx context.Context, override string) (Location, error) {
	override = strings.TrimSpace(override)
	if override == "" {
		return c.locateByIP(ctx)
	}

	lon, lat, ok := ParseLonLat(override)
	if !ok {
		lon, lat, ok = c.geocode(ctx, override)
	}
	if !ok {
		return Location{City: override}, nil
	}
	loc := c.reverseGeocode(ctx, lon, lat)
	loc.Lon, loc.Lat = lon, lat
	return loc, nil
}

type amapIP struct {
	Status    coerce.Text `json:"status"`
	Info      coerce.Text `json:"info"`
	Province  coerce.Text `json:"province"`
	City      coerce.Text `json:"city"`
	Adcode    coerce.Text `json:"adcode"`
	Rectangle coerce.Text `json:"rectangle"`
}

func (c *Client) locateByIP(ctx context.Context) (Location, error) {
	var data amapIP
	if err := c.getJSON(ctx, c.amapURL("/v3/ip", nil), &data); err != nil {
		return Location{}, fmt.Errorf("amap ip location: %w", err)
	}
	if data.Status != "1" {
		return Location{}, &ProviderError{Provider: "amap", Endpoint: "ip", Code: data.Info.String()}
	}

	loc := Location{Province: data.Province.String(), City: data.City.String(), Adcode: data.Adcode.String()}
	lon, lat, ok := RectangleCenter(data.Rectangle.String())
	if !ok {
		return loc, nil
	}

	addr := c.reverseGeocode(ctx, lon, lat)
	loc.Lon, loc.Lat = lon, lat
	loc.District = addr.District
	if loc.Province == "" {
		loc.Province = addr.Province
	}
	if loc.City == "" {
		loc.City = addr.City
	}
	if addr.Adcode != "" {
		loc.Adcode = addr.Adcode
	}
	return loc, nil
}

type amapRegeo struct {
	Status    coerce.Text `json:"status"`
	Regeocode *struct {
		AddressComponent struct {
			Province coerce.Text `json:"province"`
			City     coerce.Text `json:"city"`
			District coerce.Text `json:"district"`
			Adcode   coerce.Text `json:"adcode"`
		} `json:"addressComponent"`
	} `json:"regeocode"`
}

// reverseGeocode never fails; an unusable answer yields an empty Location.
func (c *Client) reverseGeocode(ctx context.Context, lon, lat string) Location {
	var data amapRegeo
	if err := c.getJSON(ctx, c.amapURL("/v3/geocode/regeo", url.Values{"location": {lon + "," + lat}}), &data); err != nil {
		slog.Warn("amap reverse geocode failed", "error", err)
		return Location{}
	}
	if data.Status != "1" || data.Regeocode == nil {
		return Location{}
	}

	ac := data.Regeocode.AddressComponent
	city := ac.City.String()
	if city == "" {
		// Municipalities report the city as the province.
		city = ac.Province.String()
	}
	district := ac.District.String()
	if district == "" {
		district = city
	}
	return Location{Province: ac.Province.String(), City: city, District: district, Adcode: ac.Adcode.String()}
}

type amapGeo struct {
	Status   coerce.Text `json:"status"`
	Geocodes []struct {
		Location coerce.Text `json:"location"`
	} `json:"geocodes"`
}

func (c *Client) geocode(ctx context.Context, address string) (lon, lat string, ok bool) {
	var data amapGeo
	if err := c.getJSON(ctx, c.amapURL("/v3/geocode/geo", url.Values{"address": {address}}), &data); err != nil {
		slog.Warn("amap geocode failed", "address", address, "error", err)
		return "", "", false
	}
	if data.Status != "1" || len(data.Geocodes) == 0 {
		return "", "", false
	}
	return ParseLonLat(data.Geocodes[0].Location.String())
}

type qweatherEnvelope struct {
	Code     coerce.Text `json:"code"`
	Location []struct {
		ID coerce.Text `json:"id"`
	} `json:"location"`
	Now   json.RawMessage `json:"now"`
	Daily []Day           `json:"daily"`
}

// CityID looks up the QWeather location id, preferring coordinates.
func (c *Client) CityID(ctx context.Context, loc Location) (string, error) {
	keyword := loc.District
	if keyword == "" {
		keyword = loc.City
	}
	if loc.hasCoordinates() {
		keyword = loc.Lon + "," + loc.Lat
	}

	endpoint := defaultGeoBase + "/v2/city/lookup"
	if c.opts.QWeatherHost != "" {
		endpoint = c.opts.QWeatherHost + "/geo/v2/city/lookup"
	}

	var data qweatherEnvelope
	if err := c.getJSON(ctx, c.qweatherURL(endpoint, keyword), &data); err != nil {
		return "", fmt.Errorf("qweather city lookup: %w", err)
	}
	if data.Code != "200" || len(data.Location) == 0 || data.Location[0].ID == "" {
		return "", fmt.Errorf("%w for %q", ErrNoCity, keyword)
	}
	return data.Location[0].ID.String(), nil
}

// Forecast resolves the city id and queries the current conditions, the
// 3-day forecast and the air quality concurrently. A failing air query is
// tolerated; the other two must succeed.
func (c *Client) Forecast(ctx context.Context, loc Location) (Report, error) {
	id, err := c.CityID(ctx, loc)
	if err != nil {
		return Report{}, err
	}

	base := defaultQWeatherBase
	if c.opts.QWeatherHost != "" {
		base = c.opts.QWeatherHost
	}

	report := Report{Location: loc}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		env, err := c.qweather(gctx, base+"/v7/weather/now", id, "now")
		if err != nil {
			return err
		}
		if len(env.Now) > 0 {
			if err := json.Unmarshal(env.Now, &report.Now); err != nil {
				return fmt.Errorf("decoding qweather now: %w", err)
			}
		}
		return nil
	})
	g.Go(func() error {
		env, err := c.qweather(gctx, base+"/v7/weather/3d", id, "3d")
		if err != nil {
			return err
		}
		if len(env.Daily) > 0 {
			report.Today = env.Daily[0]
		}
		return nil
	})
	g.Go(func() error {
		env, err := c.qweather(gctx, base+"/v7/air/now", id, "air")
		if err != nil {
			slog.Info("air quality unavailable", "location", id, "error", err)
			return nil
		}
		var air Air
		if len(env.Now) > 0 && json.Unmarshal(env.Now, &air) == nil && air.Category != "" {
			report.Air = &air
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (c *Client) qweather(ctx context.Context, endpoint, id, name string) (*qweatherEnvelope, error) {
	var env qweatherEnvelope
	if err := c.getJSON(ctx, c.qweatherURL(endpoint, id), &env); err != nil {
		return nil, fmt.Errorf("qweather %s: %w", name, err)
	}
	if env.Code != "200" {
		return nil, &ProviderError{Provider: "qweather", Endpoint: name, Code: env.Code.String()}
	}
	return &env, nil
}

func (c *Client) qweatherURL(endpoint, location string) string {
	q := url.Values{"location": {location}, "key": {c.opts.QWeatherKey}}
	return endpoint + "?" + q.Encode()
}

func (c *Client) amapURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.opts.AmapKey)
	return strings.TrimRight(c.opts.AmapBase, "/") + path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	res, err := fetch.Fetch(ctx, c.http, fetch.Request{URL: rawURL, Route: c.opts.Route})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(res.Body), v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// NormalizeHost returns host as a base URL. A bare host gets an https
// scheme and trailing slashes are dropped.
func NormalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	lower := strings.ToLower(host)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return host
	}
	return "https://" + host
}

var lonLatRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)

// ParseLonLat splits "116.4074,39.9042".
func ParseLonLat(s string) (lon, lat string, ok bool) {
	m := lonLatRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// RectangleCenter returns the midpoint of an AMap "lon1,lat1;lon2,lat2" box.
func RectangleCenter(rect string) (lon, lat string, ok bool) {
	a, b, found := strings.Cut(rect, ";")
	if !found || strings.Contains(b, ";") {
		return "", "", false
	}
	lon1, lat1, ok1 := ParseLonLat(a)
	lon2, lat2, ok2 := ParseLonLat(b)
	if !ok1 || !ok2 {
		return "", "", false
	}
	mid := func(x, y string) string {
		fx, _ := strconv.ParseFloat(x, 64)
		fy, _ := strconv.ParseFloat(y, 64)
		return strconv.FormatFloat((fx+fy)/2, 'f', -1, 64)
	}
	return mid(lon1, lon2), mid(lat1, lat2), true
}
