// Package tokenizer turns document text into the integer ids the
// classifier embeds.
//
// Two tokenizers are provided:
//   - WordVocab: lower-cased word-level vocabulary built from a training
//     corpus, saved as one token per line
//   - TikToken: OpenAI BPE encodings (cl100k_base, p50k_base) via
//     github.com/pkoukk/tiktoken-go, shifted so id 0 stays free for padding
//
// Both reserve id 0 for padding, which the embedding layer masks.
//
// Example usage:
//
//	vocab := tokenizer.BuildWordVocab(texts, tokenizer.VocabOptions{MinCount: 2})
//	ids, err := vocab.Encode("The plot was thin.")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := vocab.SaveFile("vocab.txt"); err != nil {
//	    log.Fatal(err)
//	}
package tokenizer
