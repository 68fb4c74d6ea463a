package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/fpang/tripstory/internal/cli"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/photo"
	"github.com/fpang/tripstory/internal/video"
)

var (
	originFlag      string
	destinationFlag string
	poiFlag         string
	imageFlag       string
	styleFlag       string
	resolveFlag     bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a route and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if originFlag == "" {
			originFlag = cli.Prompt(os.Stdin, os.Stderr, "Origin", destinationFlag)
		}
		plan, fallback := app.Assistant.PlanRoute(cmd.Context(), originFlag, destinationFlag)
		if fallback {
			fmt.Fprintln(os.Stderr, "planner unavailable, showing the default plan")
		}
		if !resolveFlag {
			return printJSON(plan)
		}
		if app.Resolver == nil {
			return fmt.Errorf("--resolve requires AMAP_KEY")
		}
		route, err := app.Resolver.Resolve(cmd.Context(), destinationFlag, plan)
		if err != nil {
			return err
		}
		cli.WriteRouteSummary(os.Stderr, route)
		return printJSON(route)
	},
}

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Find a travel video for a leg",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		keyword, result, err := app.Lookup.Find(cmd.Context(), originFlag, destinationFlag)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("no video found for %q", keyword)
		}
		return printJSON(map[string]any{
			"keyword":  keyword,
			"video":    result,
			"embedUrl": video.EmbedURL(result),
		})
	},
}

var checkInCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Generate a check-in photo from a local image",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(imageFlag)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		ref, meta, err := photo.Prepare(journey.Photo{Data: data, MIMEType: http.DetectContentType(data)}, maxDimFlag)
		if err != nil {
			return err
		}
		if meta != nil && meta.HasGPS {
			fmt.Fprintf(os.Stderr, "photo taken at %.5f,%.5f\n", meta.Latitude, meta.Longitude)
		}

		app, _, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		url, err := app.CheckIn.GenerateCheckInPhoto(cmd.Context(), journey.CheckInRequest{
			POIName:    poiFlag,
			Photo:      ref,
			StyleGuide: styleFlag,
		})
		if err != nil {
			return err
		}
		if err := app.Store.Append(cmd.Context(), url); err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List generated check-in photos",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.Store.List(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

func init() {
	planCmd.Flags().StringVar(&originFlag, "origin", "", "Where the trip starts")
	planCmd.Flags().StringVar(&destinationFlag, "city", "桂林", "Destination city")
	planCmd.Flags().BoolVar(&resolveFlag, "resolve", false, "Geocode the plan into a route")

	videoCmd.Flags().StringVar(&originFlag, "origin", "", "Leg origin")
	videoCmd.Flags().StringVar(&destinationFlag, "destination", "", "Leg destination")
	videoCmd.MarkFlagRequired("destination")

	checkInCmd.Flags().StringVar(&poiFlag, "poi", "", "Point of interest name")
	checkInCmd.Flags().StringVar(&imageFlag, "image", "", "Path to the traveller's photo")
	checkInCmd.Flags().StringVar(&styleFlag, "style", "", "Photography guide to use instead of asking the model")
	checkInCmd.Flags().IntVar(&maxDimFlag, "max-dimension", photo.DefaultMaxDimension, "Longest edge before generation")
	checkInCmd.MarkFlagRequired("poi")
	checkInCmd.MarkFlagRequired("image")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
