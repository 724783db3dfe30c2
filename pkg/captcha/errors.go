package captcha

import "errors"

var (
	// ErrDriverGone indica que o navegador ou a conexão CDP caiu. É a única
	// falha que os probes deixam subir.
	ErrDriverGone = errors.New("driver do navegador indisponível")

	// ErrNotFound é devolvido pelo driver quando um seletor não casa com nada.
	ErrNotFound = errors.New("elemento não encontrado")
)
