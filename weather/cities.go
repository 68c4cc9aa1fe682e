package weather

// cityCoordinates is the offline fallback for common cities, used when the
// geocoding API is unavailable or rate-limited. Keys are lower-cased.
var cityCoordinates = map[string]Coordinates{
	"são paulo":      {Lat: -23.5505, Lon: -46.6333, Name: "São Paulo, Brazil"},
	"sao paulo":      {Lat: -23.5505, Lon: -46.6333, Name: "São Paulo, Brazil"},
	"new york":       {Lat: 40.7128, Lon: -74.0060, Name: "New York, USA"},
	"london":         {Lat: 51.5074, Lon: -0.1278, Name: "London, UK"},
	"paris":          {Lat: 48.8566, Lon: 2.3522, Name: "Paris, France"},
	"tokyo":          {Lat: 35.6762, Lon: 139.6503, Name: "Tokyo, Japan"},
	"berlin":         {Lat: 52.5200, Lon: 13.4050, Name: "Berlin, Germany"},
	"madrid":         {Lat: 40.4168, Lon: -3.7038, Name: "Madrid, Spain"},
	"rome":           {Lat: 41.9028, Lon: 12.4964, Name: "Rome, Italy"},
	"moscow":         {Lat: 55.7558, Lon: 37.6173, Name: "Moscow, Russia"},
	"beijing":        {Lat: 39.9042, Lon: 116.4074, Name: "Beijing, China"},
	"sydney":         {Lat: -33.8688, Lon: 151.2093, Name: "Sydney, Australia"},
	"rio de janeiro": {Lat: -22.9068, Lon: -43.1729, Name: "Rio de Janeiro, Brazil"},
	"los angeles":    {Lat: 34.0522, Lon: -118.2437, Name: "Los Angeles, USA"},
	"chicago":        {Lat: 41.8781, Lon: -87.6298, Name: "Chicago, USA"},
	"toronto":        {Lat: 43.6532, Lon: -79.3832, Name: "Toronto, Canada"},
	"mexico city":    {Lat: 19.4326, Lon: -99.1332, Name: "Mexico City, Mexico"},
	"buenos aires":   {Lat: -34.6037, Lon: -58.3816, Name: "Buenos Aires, Argentina"},
	"mumbai":         {Lat: 19.0760, Lon: 72.8777, Name: "Mumbai, India"},
	"dubai":          {Lat: 25.2048, Lon: 55.2708, Name: "Dubai, UAE"},
	"singapore":      {Lat: 1.3521, Lon: 103.8198, Name: "Singapore"},
	"hong kong":      {Lat: 22.3193, Lon: 114.1694, Name: "Hong Kong"},
	"basel":          {Lat: 47.56, Lon: 7.57, Name: "Basel, Switzerland"},
}

// pictocodeConditions maps Meteoblue pictocodes to readable conditions.
var pictocodeConditions = map[int]string{
	1: "Clear", 2: "Partly Cloudy", 3: "Cloudy", 4: "Overcast",
	5: "Fog", 6: "Light Rain", 7: "Rain", 8: "Heavy Rain",
	9: "Thunderstorm", 12: "Light Snow", 13: "Snow", 14: "Heavy Snow",
	20: "Drizzle", 21: "Light Showers", 22: "Showers", 23: "Heavy Showers",
	27: "Light Snow Showers", 28: "Snow Showers", 31: "Thunderstorm with Rain",
	33: "Thunderstorm with Snow",
}

func condition(pictocode int) string {
	if c, ok := pictocodeConditions[pictocode]; ok {
		return c
	}
	return "Clear"
}
