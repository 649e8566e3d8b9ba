package geocoder

import "github.com/rajasatyajit/VesselWatch/internal/models"

var defaultPorts = []models.Port{
	{Name: "Helsinki", Country: "FI", Latitude: 60.1620, Longitude: 24.9560},
	{Name: "Turku", Country: "FI", Latitude: 60.4350, Longitude: 22.2200},
	{Name: "Kotka", Country: "FI", Latitude: 60.4660, Longitude: 26.9460},
	{Name: "Oulu", Country: "FI", Latitude: 65.0120, Longitude: 25.4000},
	{Name: "Tallinn", Country: "EE", Latitude: 59.4440, Longitude: 24.7650},
	{Name: "Stockholm", Country: "SE", Latitude: 59.3250, Longitude: 18.0900},
	{Name: "Gothenburg", Country: "SE", Latitude: 57.6950, Longitude: 11.9000},
	{Name: "Gdansk", Country: "PL", Latitude: 54.3950, Longitude: 18.6660},
	{Name: "Hamburg", Country: "DE", Latitude: 53.5400, Longitude: 9.9700},
	{Name: "Rotterdam", Country: "NL", Latitude: 51.9500, Longitude: 4.1400},
	{Name: "Antwerp", Country: "BE", Latitude: 51.2700, Longitude: 4.3400},
	{Name: "Felixstowe", Country: "GB", Latitude: 51.9550, Longitude: 1.3200},
	{Name: "Le Havre", Country: "FR", Latitude: 49.4800, Longitude: 0.1100},
	{Name: "Algeciras", Country: "ES", Latitude: 36.1300, Longitude: -5.4400},
	{Name: "Piraeus", Country: "GR", Latitude: 37.9400, Longitude: 23.6200},
	{Name: "Port Said", Country: "EG", Latitude: 31.2600, Longitude: 32.3000},
	{Name: "Jebel Ali", Country: "AE", Latitude: 25.0100, Longitude: 55.0600},
	{Name: "Singapore", Country: "SG", Latitude: 1.2640, Longitude: 103.8400},
	{Name: "Shanghai", Country: "CN", Latitude: 31.3500, Longitude: 121.6200},
	{Name: "Busan", Country: "KR", Latitude: 35.0800, Longitude: 129.0700},
	{Name: "Tokyo", Country: "JP", Latitude: 35.6100, Longitude: 139.7900},
	{Name: "Los Angeles", Country: "US", Latitude: 33.7300, Longitude: -118.2600},
	{Name: "New York", Country: "US", Latitude: 40.6700, Longitude: -74.0400},
	{Name: "Santos", Country: "BR", Latitude: -23.9600, Longitude: -46.3000},
	{Name: "Durban", Country: "ZA", Latitude: -29.8700, Longitude: 31.0300},
	{Name: "Sydney", Country: "AU", Latitude: -33.8600, Longitude: 151.2000},
}

// DefaultPorts returns the built-in port table
func DefaultPorts() []models.Port {
	cp := make([]models.Port, len(defaultPorts))
	copy(cp, defaultPorts)
	return cp
}
