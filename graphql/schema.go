// Package graphql provides the GraphQL schema definition and resolvers
// for querying the current dataset and its aggregates.
package graphql

import (
	"strings"

	"github.com/graphql-go/graphql"

	"github.com/pkgscan/scandash/model"
	"github.com/pkgscan/scandash/stats"
)

// Provider supplies a fresh dataset and aggregation options for each
// query. Every resolver recomputes from the dataset it is handed;
// nothing is cached between requests.
type Provider interface {
	Dataset() (*model.Dataset, error)
	Options(ecosystem string) stats.Options
	Frameworks(ecosystem string) stats.FrameworkTable
}

var provider Provider

// InitProvider initializes the dataset provider used by all resolvers.
func InitProvider(p Provider) {
	provider = p
}

// RecordType defines the GraphQL object for one normalized scan record
var RecordType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Record",
	Fields: graphql.Fields{
		"package":       &graphql.Field{Type: graphql.String},
		"version":       &graphql.Field{Type: graphql.String},
		"location":      &graphql.Field{Type: graphql.String},
		"ecosystem":     &graphql.Field{Type: graphql.String},
		"match_package": &graphql.Field{Type: graphql.String},
		"match_version": &graphql.Field{Type: graphql.String},
		"infected": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if rec, ok := p.Source.(model.Record); ok {
					return rec.Infected(), nil
				}
				return nil, nil
			},
		},
	},
})

// CountEntryType defines the GraphQL object for one frequency entry
var CountEntryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CountEntry",
	Fields: graphql.Fields{
		"name":  &graphql.Field{Type: graphql.String},
		"count": &graphql.Field{Type: graphql.Int},
	},
})

// DiversityEntryType defines the GraphQL object for per-package distinct version counts
var DiversityEntryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DiversityEntry",
	Fields: graphql.Fields{
		"package":  &graphql.Field{Type: graphql.String},
		"versions": &graphql.Field{Type: graphql.Int},
	},
})

// FrameworkHitType defines the GraphQL object for one matched framework category
var FrameworkHitType = graphql.NewObject(graphql.ObjectConfig{
	Name: "FrameworkHit",
	Fields: graphql.Fields{
		"category": &graphql.Field{Type: graphql.String},
		"total":    &graphql.Field{Type: graphql.Int},
		"matches":  &graphql.Field{Type: graphql.NewList(CountEntryType)},
	},
})

// OverviewType defines the GraphQL object for the main dashboard aggregates
var OverviewType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Overview",
	Fields: graphql.Fields{
		"total_records":        &graphql.Field{Type: graphql.Int},
		"unique_packages":      &graphql.Field{Type: graphql.Int},
		"unique_locations":     &graphql.Field{Type: graphql.Int},
		"infected_count":       &graphql.Field{Type: graphql.Int},
		"top_packages":         &graphql.Field{Type: graphql.NewList(CountEntryType)},
		"inconsistent":         &graphql.Field{Type: graphql.NewList(DiversityEntryType)},
		"infected_by_type":     &graphql.Field{Type: graphql.NewList(CountEntryType)},
		"infected_by_location": &graphql.Field{Type: graphql.NewList(CountEntryType)},
		"infected":             &graphql.Field{Type: graphql.NewList(RecordType)},
	},
})

func ecosystemArg(p graphql.ResolveParams) string {
	if eco, ok := p.Args["ecosystem"].(string); ok {
		return strings.ToLower(eco)
	}
	return ""
}

func limitArg(p graphql.ResolveParams, def int) int {
	if limit, ok := p.Args["limit"].(int); ok && limit > 0 {
		return limit
	}
	return def
}

// CreateSchema generates and returns the configured GraphQL schema for the API.
func CreateSchema() (graphql.Schema, error) {
	rootQuery := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"overview": &graphql.Field{
				Type: OverviewType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ds, err := provider.Dataset()
					if err != nil {
						return nil, err
					}
					report := stats.Overview(ds, provider.Options(""))
					return map[string]interface{}{
						"total_records":        report.TotalRecords,
						"unique_packages":      report.UniquePackages,
						"unique_locations":     report.UniqueLocations,
						"infected_count":       report.InfectedCount,
						"top_packages":         report.TopPackages,
						"inconsistent":         report.Inconsistent,
						"infected_by_type":     report.InfectedByType,
						"infected_by_location": report.InfectedByLocation,
						"infected":             report.Infected,
					}, nil
				},
			},
			"topPackages": &graphql.Field{
				Type: graphql.NewList(CountEntryType),
				Args: graphql.FieldConfigArgument{
					"ecosystem": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: stats.DefaultTopN},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ds, err := provider.Dataset()
					if err != nil {
						return nil, err
					}
					records := stats.Subset(ds, provider.Options(ecosystemArg(p)))
					return stats.TopN(stats.Frequency(ds, records), limitArg(p, stats.DefaultTopN)), nil
				},
			},
			"versionDiversity": &graphql.Field{
				Type: graphql.NewList(DiversityEntryType),
				Args: graphql.FieldConfigArgument{
					"ecosystem": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ds, err := provider.Dataset()
					if err != nil {
						return nil, err
					}
					records := stats.Subset(ds, provider.Options(ecosystemArg(p)))
					entries := stats.VersionDiversity(ds, records)
					limit := limitArg(p, 100)
					if limit > len(entries) {
						limit = len(entries)
					}
					return entries[:limit], nil
				},
			},
			"infected": &graphql.Field{
				Type: graphql.NewList(RecordType),
				Args: graphql.FieldConfigArgument{
					"ecosystem": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ds, err := provider.Dataset()
					if err != nil {
						return nil, err
					}
					records := stats.Subset(ds, provider.Options(ecosystemArg(p)))
					infected := stats.InfectedSubset(records)
					limit := limitArg(p, 100)
					if limit > len(infected) {
						limit = len(infected)
					}
					return infected[:limit], nil
				},
			},
			"frameworks": &graphql.Field{
				Type: graphql.NewList(FrameworkHitType),
				Args: graphql.FieldConfigArgument{
					"ecosystem": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ds, err := provider.Dataset()
					if err != nil {
						return nil, err
					}
					eco := ecosystemArg(p)
					records := stats.Subset(ds, provider.Options(eco))
					return stats.DetectFrameworks(ds, records, provider.Frameworks(eco)), nil
				},
			},
			"records": &graphql.Field{
				Type: graphql.NewList(RecordType),
				Args: graphql.FieldConfigArgument{
					"ecosystem":    &graphql.ArgumentConfig{Type: graphql.String},
					"infectedOnly": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ds, err := provider.Dataset()
					if err != nil {
						return nil, err
					}
					records := stats.Subset(ds, provider.Options(ecosystemArg(p)))
					if infectedOnly, _ := p.Args["infectedOnly"].(bool); infectedOnly {
						records = stats.InfectedSubset(records)
					}
					return records, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: rootQuery,
	})
}
