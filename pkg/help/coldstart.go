// Package help holds the quick-start reference printed by `postprocessor quickstart`.
package help

const ColdstartYAML = `# postprocessor Quick Start

pipeline:
  - "dedup: exact-text fingerprints, first occurrence wins"
  - "annotate: sentences, words, POS-style counts, readability (--metrics stats)"
  - "lang: language identification, documents outside --language are dropped (--metrics lang)"
  - "quality: HIGH / MEDIUM / LOW from the computed metrics (--metrics quality)"
  - "archive: accepted documents written to <output>/<name>.jsonl.zst"
  - "manifest: dataset stats merged into <manifest_dir>/<name>.manifest"

inputs:
  jsonl: "<input_dir>/<name>.jsonl or <name>.jsonl.zst, one {\"text\", \"meta\"} object per line"
  directory: "<input_dir>/<name>/ holding .txt and .html files"
  stdin: "--stdin --stdin-name <name> (single pass, dedup must be off)"

commands:
  process_all: |
    postprocessor process -i datasets -o output

  process_one: |
    postprocessor process -i datasets -o output --name wiki

  stats_only: |
    postprocessor process --metrics stats --no-ledger

  large_dataset: |
    postprocessor process --dedup-index sqlite --workers 16 --max-tasks 500

  with_sample: |
    postprocessor process --sample --sample-size 10 --sample-dir samples

  dedup_only: |
    postprocessor dedup --dedup-report

  stdin: |
    zstdcat wiki.jsonl.zst | postprocessor process --stdin --stdin-name wiki --dedup=false

  run_history: |
    postprocessor runs --limit 10
    postprocessor runs --failed --verbose

config_file:
  flag: "--config postprocessor.yaml (flags win over file values)"
  keys:
    - "input_dir, output_dir, manifest_dir, sample_dir, work_dir, ledger_path"
    - "names, metrics, workers, max_tasks_per_worker, min_length, language"
    - "language_candidates, low_accuracy, stopwords, vocabulary, max_chunk_bytes"
    - "samples, sample_size, dedup, dedup_report, dedup_index, update_timestamps"

filters:
  order: "duplicate, annotation_error, too_short, wrong_language"
  too_short: "characters <= min_length, or words == 0"
  skip_counts: "logged per dataset and stored in the run ledger"

manifest:
  - "Unknown fields from an existing manifest are kept"
  - "creation_date is set once, updated_date only with --update-timestamps"
  - "Average metrics are divided by accepted documents and rounded to 4 places"
  - "stats.quality holds HIGH / MEDIUM / LOW ratios rounded to 2 places"

error_behavior:
  - "A failing dataset is logged and the batch continues"
  - "Archive and manifest are only replaced after a dataset finishes"
  - "Exit codes: 0=success, 1=one or more datasets failed"
`
