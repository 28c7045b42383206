package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/angas/imbalance-go/config"
	"github.com/angas/imbalance-go/convert"
	"github.com/angas/imbalance-go/openmeteo"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	loc, err := cnfg.Normalize.GetLocation()
	if err != nil {
		panic(err)
	}

	w := cnfg.Sources.Weather
	client := &http.Client{Timeout: cnfg.Http.GetTimeout()}
	table, err := openmeteo.New(client, w.GetURL(), w.GetRequest(), loc).GetWeatherTable(context.Background())
	if err != nil {
		panic(err)
	}

	for _, r := range table.Records {
		fmt.Printf("Time: %s, Temperature: %s, Humidity: %s, Wind Speed: %s\n",
			convert.FormatTime(r.Timestamp),
			convert.FormatMaybeFloat(r.Temperature),
			convert.FormatMaybeFloat(r.Humidity),
			convert.FormatMaybeFloat(r.WindSpeed))
	}
}
