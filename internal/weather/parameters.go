package weather

// Parameter describes one supported hourly field.
type Parameter struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// HourlyParameters is the hourly vocabulary offered to users. Names outside
// this list are still forwarded to the provider, which validates them.
var HourlyParameters = []Parameter{
	{"temperature_2m", "Temperature (2 m)"},
	{"relative_humidity_2m", "Relative humidity (2 m)"},
	{"dew_point_2m", "Dew point (2 m)"},
	{"apparent_temperature", "Apparent temperature"},
	{"precipitation_probability", "Precipitation probability"},
	{"precipitation", "Precipitation"},
	{"rain", "Rain"},
	{"showers", "Showers"},
	{"snowfall", "Snowfall"},
	{"snow_depth", "Snow depth"},
	{"weather_code", "Weather code"},
	{"pressure_msl", "Sea level pressure"},
	{"surface_pressure", "Surface pressure"},
	{"cloud_cover", "Cloud cover"},
	{"cloud_cover_low", "Low cloud cover"},
	{"cloud_cover_mid", "Mid cloud cover"},
	{"cloud_cover_high", "High cloud cover"},
	{"visibility", "Visibility"},
	{"evapotranspiration", "Evapotranspiration"},
	{"et0_fao_evapotranspiration", "Reference evapotranspiration (ET0 FAO)"},
	{"vapour_pressure_deficit", "Vapour pressure deficit"},
	{"wind_speed_10m", "Wind speed (10 m)"},
	{"wind_speed_80m", "Wind speed (80 m)"},
	{"wind_speed_120m", "Wind speed (120 m)"},
	{"wind_speed_180m", "Wind speed (180 m)"},
	{"wind_direction_10m", "Wind direction (10 m)"},
	{"wind_direction_80m", "Wind direction (80 m)"},
	{"wind_direction_120m", "Wind direction (120 m)"},
	{"wind_direction_180m", "Wind direction (180 m)"},
	{"wind_gusts_10m", "Wind gusts (10 m)"},
	{"temperature_80m", "Temperature (80 m)"},
	{"temperature_120m", "Temperature (120 m)"},
	{"temperature_180m", "Temperature (180 m)"},
	{"soil_temperature_0cm", "Soil temperature (0 cm)"},
	{"soil_temperature_6cm", "Soil temperature (6 cm)"},
	{"soil_temperature_18cm", "Soil temperature (18 cm)"},
	{"soil_temperature_54cm", "Soil temperature (54 cm)"},
	{"soil_moisture_0_to_1cm", "Soil moisture (0-1 cm)"},
	{"soil_moisture_1_to_3cm", "Soil moisture (1-3 cm)"},
	{"soil_moisture_3_to_9cm", "Soil moisture (3-9 cm)"},
	{"soil_moisture_9_to_27cm", "Soil moisture (9-27 cm)"},
	{"soil_moisture_27_to_81cm", "Soil moisture (27-81 cm)"},
}
