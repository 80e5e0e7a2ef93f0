package mcpserver

// ManifestFormatContract describes the chartbook.toml format that LLM
// consumers should follow when reading or authoring manifests.
const ManifestFormatContract = `# Chartbook Manifest Format

Every pipeline or catalog directory contains a ` + "`chartbook.toml`" + ` at its root.

## Pipeline manifest

` + "```" + `toml
[config]
type = "pipeline"                    # REQUIRED: "pipeline" or "catalog"
chartbook_format_version = "0.1.0"   # REQUIRED: numeric dot-separated, >= 0.1.0

[site]
title = "Fixed Income Markets"       # letters, digits, spaces and - , . ! & : ' only
author = "Jane O'Brien"
copyright = "2025"
logo_path = ""                       # optional
favicon_path = ""

[pipeline]
id = "fixed_income"
pipeline_name = "Fixed Income Markets"
pipeline_description = "Treasury and corporate bond data."
lead_pipeline_developer = "Jane O'Brien"
contributors = []
README_file_path = "README.md"

[dataframes.repo_rates]
dataframe_name = "Repo rates"
short_description_df = "Daily general collateral repo rates."
path_to_parquet_data = "_data/repo_rates.parquet"
dataframe_docs_path = "docs_src/dataframes/repo_rates.md"
date_col = "date"
topic_tags = ["Interest Rates", "Repo"]
data_sources = ["FRED"]
data_providers = ["Federal Reserve"]

[charts.repo_rates_chart]
chart_name = "Repo rates over time"
short_description_chart = "SOFR and TGCR since 2018."
dataframe_id = "repo_rates"          # MUST name a dataframe above
path_to_html_chart = "_output/repo_rates.html"
chart_docs_path = "docs_src/charts/repo_rates.md"
topic_tags = ["Interest Rates"]

[notes.methodology]
path_to_markdown_file = "docs_src/methodology.md"
` + "```" + `

## Catalog manifest

` + "```" + `toml
[config]
type = "catalog"
chartbook_format_version = "0.1.0"

[site]
title = "Research Catalog"

[pipelines.fixed_income]
path_to_pipeline = "../fixed_income"

[pipelines.equities]
path_to_pipeline = { Windows = 'C:\projects\equities', Unix = "/opt/projects/equities" }
` + "```" + `

## Rules

1. **Paths** are relative to the manifest directory unless absolute. Any path
   may be a table keyed by ` + "`Windows`" + ` and ` + "`Unix`" + `; Linux and macOS use ` + "`Unix`" + `.
2. **Empty strings** mean "not provided".
3. **Chart links.** Every chart's ` + "`dataframe_id`" + ` must reference a dataframe in the
   same manifest. Each dataframe gets ` + "`linked_charts`" + ` in declaration order.
4. **Tags** on dataframes are Title-Cased and de-duplicated case-insensitively.
5. **Site strings** reject ` + "`\" ; ( ) [ ] { } \\`" + ` and are limited to 200 characters.
   A missing site title defaults to "chartbook".
6. **Catalogs** reference pipelines only; a catalog of catalogs is rejected.
`
